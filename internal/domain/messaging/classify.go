package messaging

// Classify resolves a session against the patient and pre-patient session
// sets. Membership in patients always wins, even when the session id also
// appears among pre-patients.
func Classify(sessionID string, patients, prePatients map[string]bool) Kind {
	switch {
	case patients[sessionID]:
		return KindPatient
	case prePatients[sessionID]:
		return KindPrePatient
	default:
		return KindUnknown
	}
}

// Directory indexes contacts by session id for classification and display.
type Directory struct {
	patients    map[string]Contact
	prePatients map[string]Contact
}

func NewDirectory(patients, prePatients []Contact) *Directory {
	d := &Directory{
		patients:    make(map[string]Contact, len(patients)),
		prePatients: make(map[string]Contact, len(prePatients)),
	}
	for _, c := range patients {
		if c.SessionID != "" {
			d.patients[c.SessionID] = c
		}
	}
	for _, c := range prePatients {
		if c.SessionID != "" {
			d.prePatients[c.SessionID] = c
		}
	}
	return d
}

func (d *Directory) Classify(sessionID string) Kind {
	switch {
	case d.patients[sessionID].SessionID != "":
		return KindPatient
	case d.prePatients[sessionID].SessionID != "":
		return KindPrePatient
	default:
		return KindUnknown
	}
}

// Resolve returns the contact behind a session, preferring the patient row.
// Unknown sessions fall back to the session id as display name.
func (d *Directory) Resolve(sessionID string) (Contact, Kind) {
	if c, ok := d.patients[sessionID]; ok {
		return c, KindPatient
	}
	if c, ok := d.prePatients[sessionID]; ok {
		return c, KindPrePatient
	}
	return Contact{SessionID: sessionID, Name: sessionID}, KindUnknown
}
