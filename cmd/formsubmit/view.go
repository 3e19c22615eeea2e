package main

import (
	"fmt"
	"html"
	"io"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/cdl-rdv/formrelay/pkg/submit"
)

var (
	noticePolicyOnce sync.Once
	noticePolicy     *bluemonday.Policy
)

// plain strips the markup the webservice sometimes puts in its error
// messages so notices print as text.
func plain(s string) string {
	noticePolicyOnce.Do(func() {
		noticePolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(noticePolicy.Sanitize(s)))
}

// terminalView prints controller notices as lines.
type terminalView struct {
	mu  sync.Mutex
	out io.Writer
}

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{out: out}
}

func (v *terminalView) printf(format string, args ...interface{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, format, args...)
}

func (v *terminalView) SetBusy(busy bool, label string) {
	if busy {
		v.printf("%s\n", label)
	}
}

func (v *terminalView) Reset() {}

func (v *terminalView) ClearMessages() {}

func (v *terminalView) Show(m submit.Message) {
	prefix := "✔"
	if m.Kind == submit.Failure {
		prefix = "✘"
	}
	v.printf("%s %s\n", prefix, plain(m.Text))
}

// Remove is a no-op: printed lines stay on screen.
func (v *terminalView) Remove(submit.Message) {}
