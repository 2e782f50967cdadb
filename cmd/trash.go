package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli"
	"github.com/warpdl/warpops/cmd/common"
	"github.com/warpdl/warpops/internal/fsadaptor"
	"github.com/warpdl/warpops/internal/trash"
	"github.com/warpdl/warpops/pkg/warpcli"
)

// trashStore is the part of the trash bin the trash commands use, served
// by the local bin or by the daemon.
type trashStore interface {
	List(ctx context.Context) ([]trash.Item, error)
	Restore(ctx context.Context, id string) (trash.Item, error)
}

// remoteTrash reaches the daemon's bin.
type remoteTrash struct {
	client *warpcli.Client
}

func (r *remoteTrash) List(ctx context.Context) ([]trash.Item, error) {
	res, err := r.client.TrashList(ctx)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (r *remoteTrash) Restore(ctx context.Context, id string) (trash.Item, error) {
	item, err := r.client.TrashRestore(ctx, id)
	if err != nil {
		return trash.Item{}, err
	}
	return *item, nil
}

// openTrashStore opens the local bin, or the daemon's when a daemon URI is
// configured. The returned function releases it.
func openTrashStore(ctx *cli.Context) (trashStore, func(), error) {
	s, err := loadSettings(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.applyRemoteFlags(ctx)
	if s.DaemonURI != "" {
		cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := warpcli.NewClient(cctx, &warpcli.Options{URI: s.DaemonURI, Secret: s.Secret})
		if err != nil {
			return nil, nil, err
		}
		return &remoteTrash{client: client}, func() { client.Close() }, nil
	}
	bin, err := trash.Open(fsadaptor.NewOS().Fs(), s.TrashDir, s.trashIndex())
	if err != nil {
		return nil, nil, err
	}
	return bin, func() { bin.Close() }, nil
}

func trashList(ctx *cli.Context) error {
	store, closeStore, err := openTrashStore(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "trash", "open", err)
		return nil
	}
	defer closeStore()
	items, err := store.List(context.Background())
	if err != nil {
		common.PrintRuntimeErr(ctx, "trash", "list", err)
		return nil
	}
	printTrash(os.Stdout, items)
	return nil
}

func printTrash(w io.Writer, items []trash.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "warpops: the trash is empty")
		return
	}
	txt := "Trashed items:"
	txt += "\n\n-------------------------------------------------------------------------------"
	txt += "\n|                  ID                  |   Trashed at   |   Size   | Original"
	txt += "\n|--------------------------------------|----------------|----------|----------"
	for _, it := range items {
		size := humanBytes(it.Size)
		if it.IsDir {
			size += "/"
		}
		txt += fmt.Sprintf("\n| %s | %s | %s | %s",
			it.ID,
			common.Beaut(it.TrashedAt.Local().Format("Jan _2 15:04"), 14),
			common.Beaut(size, 8),
			it.OriginalPath,
		)
	}
	txt += "\n-------------------------------------------------------------------------------"
	fmt.Fprintln(w, txt)
}

func trashRestore(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		return common.PrintErrWithCmdHelp(ctx, fmt.Errorf("no trash item id given"))
	}
	store, closeStore, err := openTrashStore(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "trash", "open", err)
		return nil
	}
	defer closeStore()
	item, err := store.Restore(context.Background(), id)
	if err != nil {
		common.PrintRuntimeErr(ctx, "trash", "restore", err)
		return nil
	}
	fmt.Printf("Restored %s\n", item.OriginalPath)
	return nil
}
