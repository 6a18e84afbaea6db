package server

import (
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/serializer"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// nopTransport only records the registered handler
type nopTransport struct {
	handler transport.ServerHandleFunc
}

func (t *nopTransport) RegisterHandler(h transport.ServerHandleFunc) { t.handler = h }
func (t *nopTransport) Listen(common.ServerConfig) error             { return nil }
func (t *nopTransport) Close() error                                 { return nil }

func newTestServer(t *testing.T, areas string) (*Server, *nopTransport) {
	t.Helper()

	config, err := common.ParseAreas(areas)
	if err != nil {
		t.Fatalf("ParseAreas: %v", err)
	}
	tr := &nopTransport{}
	s := NewRPCServer(common.ServerConfig{Areas: config, ChangeLogSize: 16}, tr, serializer.NewBinarySerializer())
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s, tr
}

// call runs req against the area like a transport would
func call(t *testing.T, s *Server, areaID uint64, req *common.Message) *common.Message {
	t.Helper()

	ser := serializer.NewBinarySerializer()
	data, err := ser.Serialize(*req)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	resp := &common.Message{}
	if err := ser.Deserialize(s.Handle(areaID, data), resp); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	return resp
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestHandlerRegistered(t *testing.T) {
	s, tr := newTestServer(t, "1=local:memory")
	if tr.handler == nil {
		t.Fatal("no handler registered")
	}
	if _, ok := s.Area(1); !ok {
		t.Fatal("area 1 not opened")
	}
}

func TestStorageOperations(t *testing.T) {
	s, _ := newTestServer(t, "1=local:memory")

	if resp := call(t, s, 1, common.NewSetRequest("a", "k1", "v1")); resp.Error() != nil {
		t.Fatalf("set: %v", resp.Error())
	}
	call(t, s, 1, common.NewSetRequest("a", "k2", ""))

	resp := call(t, s, 1, common.NewGetRequest("k1"))
	if !resp.Ok || string(resp.Value) != "v1" {
		t.Errorf("get k1 = %+v", resp)
	}
	resp = call(t, s, 1, common.NewGetRequest("k2"))
	if !resp.Ok || len(resp.Value) != 0 {
		t.Errorf("get k2 = %+v, want present empty value", resp)
	}
	if resp = call(t, s, 1, common.NewGetRequest("missing")); resp.Ok {
		t.Errorf("get missing = %+v, want absent", resp)
	}

	if resp = call(t, s, 1, common.NewLengthRequest()); resp.Index != 2 {
		t.Errorf("length = %d, want 2", resp.Index)
	}
	if resp = call(t, s, 1, common.NewKeyRequest(1)); !resp.Ok || resp.Key != "k2" {
		t.Errorf("key(1) = %+v", resp)
	}
	if resp = call(t, s, 1, common.NewKeyRequest(2)); resp.Ok {
		t.Errorf("key(2) = %+v, want absent", resp)
	}

	call(t, s, 1, common.NewRemoveRequest("a", "k1"))
	if resp = call(t, s, 1, common.NewLengthRequest()); resp.Index != 1 {
		t.Errorf("length after remove = %d, want 1", resp.Index)
	}

	call(t, s, 1, common.NewClearRequest("a"))
	if resp = call(t, s, 1, common.NewLengthRequest()); resp.Index != 0 {
		t.Errorf("length after clear = %d, want 0", resp.Index)
	}
}

func TestWatch(t *testing.T) {
	s, _ := newTestServer(t, "1=local:memory")

	head := call(t, s, 1, common.NewWatchRequest("b", 0, true))
	if head.Cursor != 0 || head.Reset {
		t.Fatalf("initial watch = %+v", head)
	}

	call(t, s, 1, common.NewSetRequest("a", "k", "1"))
	call(t, s, 1, common.NewSetRequest("b", "k", "2"))
	call(t, s, 1, common.NewSetRequest("a", "k", "2")) // no-op, not logged
	call(t, s, 1, common.NewRemoveRequest("a", "missing"))
	call(t, s, 1, common.NewClearRequest("a"))

	resp := call(t, s, 1, common.NewWatchRequest("b", head.Cursor, false))
	want := []common.Change{
		{Seq: 1, Key: "k", NewValue: "1", HasNew: true},
		{Seq: 3, Clear: true},
	}
	if diff := cmp.Diff(want, resp.Changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	if resp.Cursor != 3 || resp.Reset {
		t.Errorf("cursor = %d, reset = %v, want 3, false", resp.Cursor, resp.Reset)
	}
}

func TestWatchReset(t *testing.T) {
	s, _ := newTestServer(t, "1=local:memory")

	for i := 0; i < 20; i++ {
		call(t, s, 1, common.NewSetRequest("a", "k", string(rune('a'+i))))
	}

	resp := call(t, s, 1, common.NewWatchRequest("b", 1, false))
	if !resp.Reset || resp.Cursor != 20 || len(resp.Changes) != 0 {
		t.Errorf("watch = %+v, want reset to 20", resp)
	}
}

func TestErrorCodes(t *testing.T) {
	s, _ := newTestServer(t, "1=session:memory")

	area, _ := s.Area(1)
	area.Storage().Backend().Close()

	resp := call(t, s, 1, common.NewSetRequest("a", "k", "v"))
	if !storage.IsCode(resp.Error(), storage.RetCClosed) {
		t.Errorf("set on closed backend = %v, want RetCClosed", resp.Error())
	}

	resp = call(t, s, 7, common.NewGetRequest("k"))
	if resp.MsgType != common.MsgTError || resp.Error() == nil {
		t.Errorf("unknown area = %+v, want error", resp)
	}

	resp = &common.Message{}
	ser := serializer.NewBinarySerializer()
	if err := ser.Deserialize(s.Handle(1, []byte{1}), resp); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if resp.MsgType != common.MsgTError {
		t.Errorf("garbage request = %+v, want error", resp)
	}
}

func TestPersistentEngines(t *testing.T) {
	dir := t.TempDir()
	areas := "1=local:sqlite:" + filepath.Join(dir, "local.db") + ",2=local:file:" + filepath.Join(dir, "local.snap")
	s, _ := newTestServer(t, areas)

	for _, id := range []uint64{1, 2} {
		call(t, s, id, common.NewSetRequest("a", "k", "v"))
		if resp := call(t, s, id, common.NewGetRequest("k")); string(resp.Value) != "v" {
			t.Errorf("area %d: get = %+v", id, resp)
		}
	}
}
