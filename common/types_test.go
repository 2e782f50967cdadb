package common

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/warpdl/warpops/pkg/warpops"
)

func TestSubmitParamsUseNames(t *testing.T) {
	var req warpops.Request
	body := `{"kind":"copy","sources":["/a"],"destination":"/b","on_conflict":"rename"}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if req.Kind != warpops.KindCopy || req.OnConflict != warpops.ConflictRename {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestSnapshotResultFlattensSnapshot(t *testing.T) {
	b, err := json.Marshal(SnapshotResult{Snapshot: warpops.Snapshot{Group: "g1", Succeeded: 2}})
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.Contains(s, `"group":"g1"`) || !strings.Contains(s, `"succeeded":2`) {
		t.Fatalf("snapshot fields not at top level: %s", s)
	}
	if strings.Contains(s, `"tasks"`) {
		t.Fatalf("empty task list must be omitted: %s", s)
	}
}
