package notification

import (
	"strings"

	"github.com/KellyGutierrez/notifycar-sub000/internal/user"
	"github.com/KellyGutierrez/notifycar-sub000/internal/vehicle"
)

const (
	RoleOwner  = "OWNER"
	RoleDriver = "DRIVER"
)

const DefaultRecipientName = "Usuario"

// Recipient is who the composed message is addressed to.
type Recipient struct {
	Name  string
	Phone string
}

// ResolveRecipient picks the target of a notification. The account holder is
// the default; OWNER and DRIVER switch to the vehicle's owner or driver
// contact only when that contact has a phone. Any other role, including an
// empty one, keeps the holder. holder may be nil.
func ResolveRecipient(v *vehicle.Vehicle, holder *user.User, role string) Recipient {
	def := Recipient{Name: DefaultRecipientName}
	if holder != nil {
		def.Name = firstNonBlank(holder.Name, DefaultRecipientName)
		def.Phone = holder.FullPhone()
	}

	switch role {
	case RoleOwner:
		if strings.TrimSpace(v.OwnerPhone) != "" {
			return Recipient{Name: firstNonBlank(v.OwnerName, def.Name), Phone: strings.TrimSpace(v.OwnerPhone)}
		}
	case RoleDriver:
		if strings.TrimSpace(v.DriverPhone) != "" {
			return Recipient{Name: firstNonBlank(v.DriverName, def.Name), Phone: strings.TrimSpace(v.DriverPhone)}
		}
	}
	return def
}

func firstNonBlank(values ...string) string {
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
