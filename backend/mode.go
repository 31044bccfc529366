package backend

// Mode selects how Open treats existing data at the backend's location.
type Mode int

const (
	// ModeOpen requires existing data; data.ErrNotFound otherwise.
	ModeOpen Mode = iota
	// ModeReadOnly is ModeOpen without write access. Writes fail with
	// data.ErrReadOnlyDataset.
	ModeReadOnly
	// ModeCreate requires that no data exists; data.ErrAlreadyExists otherwise.
	ModeCreate
	// ModeOverwrite removes existing data and starts an empty dataset.
	ModeOverwrite
)

func (m Mode) String() string {
	switch m {
	case ModeOpen:
		return "open"
	case ModeReadOnly:
		return "read-only"
	case ModeCreate:
		return "create"
	case ModeOverwrite:
		return "overwrite"
	default:
		return "unknown"
	}
}

// Creates reports whether the mode starts a new, empty dataset.
func (m Mode) Creates() bool {
	return m == ModeCreate || m == ModeOverwrite
}

// Writable reports whether the mode permits writes.
func (m Mode) Writable() bool {
	return m != ModeReadOnly
}
