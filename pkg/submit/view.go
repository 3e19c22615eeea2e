package submit

// MessageKind tells a success notice from a failure notice.
type MessageKind int

const (
	Success MessageKind = iota + 1
	Failure
)

func (k MessageKind) String() string {
	switch k {
	case Success:
		return "success"
	case Failure:
		return "error"
	default:
		return "unknown"
	}
}

// Message is a notice displayed under the form. ID is unique per
// controller.
type Message struct {
	ID   uint64
	Kind MessageKind
	Text string
}

// View is the form as seen by the controller. Remove may be called from a
// timer goroutine, so implementations must be safe for concurrent use.
type View interface {
	// SetBusy disables or enables the submit control and sets its label.
	SetBusy(busy bool, label string)
	// Reset clears the form fields.
	Reset()
	// ClearMessages removes every displayed notice.
	ClearMessages()
	Show(m Message)
	// Remove hides m if it is still displayed.
	Remove(m Message)
}
