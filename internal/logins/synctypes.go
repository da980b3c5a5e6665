package logins

import "encoding/json"

// Payload is the wire representation of a Login record or a tombstone,
// per §6.2. Field names use the protocol's camelCase spelling. Username
// defaults to empty string when absent on decode; TimeLastUsed/TimesUsed
// are omitted on encode when not present.
type Payload struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted,omitempty"`

	Hostname      string `json:"hostname,omitempty"`
	FormSubmitURL string `json:"formSubmitURL,omitempty"`
	HTTPRealm     string `json:"httpRealm,omitempty"`
	Username      string `json:"username"`
	Password      string `json:"password,omitempty"`
	UsernameField string `json:"usernameField,omitempty"`
	PasswordField string `json:"passwordField,omitempty"`

	TimeCreated         int64  `json:"timeCreated,omitempty"`
	TimePasswordChanged int64  `json:"timePasswordChanged,omitempty"`
	TimeLastUsed        *int64 `json:"timeLastUsed,omitempty"`
	TimesUsed           *int64 `json:"timesUsed,omitempty"`
}

// IsTombstone reports whether this payload represents a deletion, which
// carries only an id.
func (p Payload) IsTombstone() bool { return p.Deleted }

// ToLogin converts a non-tombstone payload into a Login. Username defaults
// to "" when absent, matching §6.2.
func (p Payload) ToLogin() Login {
	l := Login{
		ID:                  p.ID,
		Hostname:            p.Hostname,
		FormSubmitURL:       p.FormSubmitURL,
		HTTPRealm:           p.HTTPRealm,
		Username:            p.Username,
		Password:            p.Password,
		UsernameField:       p.UsernameField,
		PasswordField:       p.PasswordField,
		TimeCreated:         p.TimeCreated,
		TimePasswordChanged: p.TimePasswordChanged,
	}
	if p.TimeLastUsed != nil {
		l.TimeLastUsed = *p.TimeLastUsed
		l.HasTimeLastUsed = true
	}
	if p.TimesUsed != nil {
		l.TimesUsed = *p.TimesUsed
		l.HasTimesUsed = true
	}
	return l
}

// PayloadFromLogin converts a Login into its wire payload.
func PayloadFromLogin(l Login) Payload {
	p := Payload{
		ID:                  l.ID,
		Hostname:            l.Hostname,
		FormSubmitURL:       l.FormSubmitURL,
		HTTPRealm:           l.HTTPRealm,
		Username:            l.Username,
		Password:            l.Password,
		UsernameField:       l.UsernameField,
		PasswordField:       l.PasswordField,
		TimeCreated:         l.TimeCreated,
		TimePasswordChanged: l.TimePasswordChanged,
	}
	if l.HasTimeLastUsed {
		v := l.TimeLastUsed
		p.TimeLastUsed = &v
	}
	if l.HasTimesUsed {
		v := l.TimesUsed
		p.TimesUsed = &v
	}
	return p
}

// TombstonePayload builds the wire tombstone {id, deleted: true}.
func TombstonePayload(id string) Payload {
	return Payload{ID: id, Deleted: true}
}

// IncomingRecord is one element of an IncomingChangeset: a payload paired
// with the server timestamp it was observed at.
type IncomingRecord struct {
	Payload  Payload
	ServerTS ServerTimestamp
}

// IncomingChangeset is the batch of records fetched from the server for one
// apply_incoming call.
type IncomingChangeset struct {
	Collection string
	Timestamp  ServerTimestamp
	Changes    []IncomingRecord
}

// NewIncomingChangeset builds an empty changeset for the "passwords" collection.
func NewIncomingChangeset(ts ServerTimestamp) IncomingChangeset {
	return IncomingChangeset{Collection: "passwords", Timestamp: ts}
}

// OutgoingChangeset is the batch of records derived from pending local rows.
type OutgoingChangeset struct {
	Collection string
	Timestamp  ServerTimestamp
	Changes    []Payload
}

// NewOutgoingChangeset builds an empty outgoing changeset for the
// "passwords" collection stamped at ts.
func NewOutgoingChangeset(ts ServerTimestamp) OutgoingChangeset {
	return OutgoingChangeset{Collection: "passwords", Timestamp: ts}
}

// MarshalJSON and UnmarshalJSON round-trip Payload through its wire shape;
// kept explicit (rather than relying solely on struct tags) because Deleted
// tombstones must serialize with only id+deleted and nothing else.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.Deleted {
		return json.Marshal(struct {
			ID      string `json:"id"`
			Deleted bool   `json:"deleted"`
		}{ID: p.ID, Deleted: true})
	}
	type alias Payload
	return json.Marshal(alias(p))
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	type alias Payload
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = Payload(a)
	return nil
}
