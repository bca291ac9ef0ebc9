package scanner

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/tavall/scanagent/internal/model"
)

// WriterParentNotifier emits the structured parent-context messages as
// JSON lines on a writer. An embedding process consumes them from the
// agent's stdout.
type WriterParentNotifier struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriterParentNotifier creates a notifier writing to w.
func NewWriterParentNotifier(w io.Writer) *WriterParentNotifier {
	return &WriterParentNotifier{enc: json.NewEncoder(w)}
}

// DriverScanFound implements ParentNotifier.
func (n *WriterParentNotifier) DriverScanFound(uuid string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_ = n.enc.Encode(struct {
		Type string `json:"type"`
		UUID string `json:"uuid"`
	}{Type: "driverScanFound", UUID: uuid})
}

// RouteScanResult implements ParentNotifier.
func (n *WriterParentNotifier) RouteScanResult(routeID string, payload *model.ScanResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_ = n.enc.Encode(struct {
		Type    string            `json:"type"`
		RouteID string            `json:"routeId"`
		Payload *model.ScanResult `json:"payload"`
	}{Type: "routeScanResult", RouteID: routeID, Payload: payload})
}

// WriterNavigator renders the follow-up location for a scanned
// identifier as a single line. The operator or wrapping process follows
// it; the session ends after emitting it.
type WriterNavigator struct {
	w    io.Writer
	base string
}

// NewWriterNavigator creates a navigator printing locations rooted at
// base.
func NewWriterNavigator(w io.Writer, base string) *WriterNavigator {
	return &WriterNavigator{w: w, base: base}
}

// Navigate implements Navigator.
func (n *WriterNavigator) Navigate(uuid string) {
	_, _ = io.WriteString(n.w, n.base+uuid+"\n")
}
