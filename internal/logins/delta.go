package logins

// Field identifies one mutable attribute of a Login for delta tracking.
type Field uint32

const (
	FieldHostname Field = 1 << iota
	FieldFormSubmitURL
	FieldHTTPRealm
	FieldUsername
	FieldPassword
	FieldUsernameField
	FieldPasswordField
	FieldTimeCreated
	FieldTimePasswordChanged
	FieldTimeLastUsed
	FieldTimesUsed
)

// Delta records, for each field of Login, either "unchanged" (bit clear) or
// "set to Value" (bit set in Fields, value held in the matching field below).
// A zero Delta is the empty delta ("unchanged" everywhere).
type Delta struct {
	Fields Field

	Hostname            string
	FormSubmitURL       string
	HTTPRealm           string
	Username            string
	Password            string
	UsernameField       string
	PasswordField       string
	TimeCreated         int64
	TimePasswordChanged int64
	TimeLastUsed        int64
	TimesUsed           int64

	// HasTimeLastUsed / HasTimesUsed carry the *target* presence for their
	// field when Fields marks it set — a diff can legitimately set a field
	// to "absent" (e.g. the field was present in b but not in a).
	HasTimeLastUsed bool
	HasTimesUsed    bool
}

// has reports whether f is set in the delta.
func (d Delta) has(f Field) bool { return d.Fields&f != 0 }

// Diff computes the delta that, applied to b, yields a. For each field, if
// a.field != b.field the delta records set(a.field); otherwise the field is
// left unchanged.
func Diff(a, b Login) Delta {
	var d Delta
	if a.Hostname != b.Hostname {
		d.Fields |= FieldHostname
		d.Hostname = a.Hostname
	}
	if a.FormSubmitURL != b.FormSubmitURL {
		d.Fields |= FieldFormSubmitURL
		d.FormSubmitURL = a.FormSubmitURL
	}
	if a.HTTPRealm != b.HTTPRealm {
		d.Fields |= FieldHTTPRealm
		d.HTTPRealm = a.HTTPRealm
	}
	if a.Username != b.Username {
		d.Fields |= FieldUsername
		d.Username = a.Username
	}
	if a.Password != b.Password {
		d.Fields |= FieldPassword
		d.Password = a.Password
	}
	if a.UsernameField != b.UsernameField {
		d.Fields |= FieldUsernameField
		d.UsernameField = a.UsernameField
	}
	if a.PasswordField != b.PasswordField {
		d.Fields |= FieldPasswordField
		d.PasswordField = a.PasswordField
	}
	if a.TimeCreated != b.TimeCreated {
		d.Fields |= FieldTimeCreated
		d.TimeCreated = a.TimeCreated
	}
	if a.TimePasswordChanged != b.TimePasswordChanged {
		d.Fields |= FieldTimePasswordChanged
		d.TimePasswordChanged = a.TimePasswordChanged
	}
	if a.TimeLastUsed != b.TimeLastUsed || a.HasTimeLastUsed != b.HasTimeLastUsed {
		d.Fields |= FieldTimeLastUsed
		d.TimeLastUsed = a.TimeLastUsed
		d.HasTimeLastUsed = a.HasTimeLastUsed
	}
	if a.TimesUsed != b.TimesUsed || a.HasTimesUsed != b.HasTimesUsed {
		d.Fields |= FieldTimesUsed
		d.TimesUsed = a.TimesUsed
		d.HasTimesUsed = a.HasTimesUsed
	}
	return d
}

// timestampFields are the two fields merge always takes the max of,
// regardless of prefer_remote — except TimePasswordChanged, which co-varies
// with the winning password and so follows the flag instead (see Merge).
const timestampFields = FieldTimeCreated | FieldTimeLastUsed

// Merge field-by-field unions local and remote. If only one side sets a
// field, that value wins. If both set it, preferRemote selects the winner,
// except:
//   - TimeCreated/TimeLastUsed always take the larger of the two set values
//     (clocks only move forward), regardless of preferRemote.
//   - TimePasswordChanged follows preferRemote like any other field, because
//     its value co-varies with whichever password wins.
func Merge(local, remote Delta, preferRemote bool) Delta {
	var out Delta
	for _, f := range []Field{
		FieldHostname, FieldFormSubmitURL, FieldHTTPRealm, FieldUsername,
		FieldPassword, FieldUsernameField, FieldPasswordField,
		FieldTimeCreated, FieldTimePasswordChanged, FieldTimeLastUsed, FieldTimesUsed,
	} {
		localSet := local.has(f)
		remoteSet := remote.has(f)
		switch {
		case localSet && remoteSet:
			if f&timestampFields != 0 {
				mergeMax(&out, f, local, remote)
			} else if preferRemote {
				copyField(&out, f, remote)
			} else {
				copyField(&out, f, local)
			}
		case localSet:
			copyField(&out, f, local)
		case remoteSet:
			copyField(&out, f, remote)
		}
	}
	return out
}

// copyField copies field f's value from src into dst and marks it set.
func copyField(dst *Delta, f Field, src Delta) {
	dst.Fields |= f
	switch f {
	case FieldHostname:
		dst.Hostname = src.Hostname
	case FieldFormSubmitURL:
		dst.FormSubmitURL = src.FormSubmitURL
	case FieldHTTPRealm:
		dst.HTTPRealm = src.HTTPRealm
	case FieldUsername:
		dst.Username = src.Username
	case FieldPassword:
		dst.Password = src.Password
	case FieldUsernameField:
		dst.UsernameField = src.UsernameField
	case FieldPasswordField:
		dst.PasswordField = src.PasswordField
	case FieldTimeCreated:
		dst.TimeCreated = src.TimeCreated
	case FieldTimePasswordChanged:
		dst.TimePasswordChanged = src.TimePasswordChanged
	case FieldTimeLastUsed:
		dst.TimeLastUsed = src.TimeLastUsed
		dst.HasTimeLastUsed = src.HasTimeLastUsed
	case FieldTimesUsed:
		dst.TimesUsed = src.TimesUsed
		dst.HasTimesUsed = src.HasTimesUsed
	}
}

// mergeMax picks the larger of local's and remote's value for a timestamp
// field that both sides set.
func mergeMax(dst *Delta, f Field, local, remote Delta) {
	dst.Fields |= f
	switch f {
	case FieldTimeCreated:
		if local.TimeCreated > remote.TimeCreated {
			dst.TimeCreated = local.TimeCreated
		} else {
			dst.TimeCreated = remote.TimeCreated
		}
	case FieldTimeLastUsed:
		if local.TimeLastUsed > remote.TimeLastUsed {
			dst.TimeLastUsed = local.TimeLastUsed
			dst.HasTimeLastUsed = local.HasTimeLastUsed
		} else {
			dst.TimeLastUsed = remote.TimeLastUsed
			dst.HasTimeLastUsed = remote.HasTimeLastUsed
		}
	}
}

// Apply replaces, in place, every field delta marks as set.
func Apply(l *Login, delta Delta) {
	if delta.has(FieldHostname) {
		l.Hostname = delta.Hostname
	}
	if delta.has(FieldFormSubmitURL) {
		l.FormSubmitURL = delta.FormSubmitURL
	}
	if delta.has(FieldHTTPRealm) {
		l.HTTPRealm = delta.HTTPRealm
	}
	if delta.has(FieldUsername) {
		l.Username = delta.Username
	}
	if delta.has(FieldPassword) {
		l.Password = delta.Password
	}
	if delta.has(FieldUsernameField) {
		l.UsernameField = delta.UsernameField
	}
	if delta.has(FieldPasswordField) {
		l.PasswordField = delta.PasswordField
	}
	if delta.has(FieldTimeCreated) {
		l.TimeCreated = delta.TimeCreated
	}
	if delta.has(FieldTimePasswordChanged) {
		l.TimePasswordChanged = delta.TimePasswordChanged
	}
	if delta.has(FieldTimeLastUsed) {
		l.TimeLastUsed = delta.TimeLastUsed
		l.HasTimeLastUsed = delta.HasTimeLastUsed
	}
	if delta.has(FieldTimesUsed) {
		l.TimesUsed = delta.TimesUsed
		l.HasTimesUsed = delta.HasTimesUsed
	}
}
