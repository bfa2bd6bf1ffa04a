package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KellyGutierrez/notifycar-sub000/internal/emergency"
	"github.com/KellyGutierrez/notifycar-sub000/internal/organization"
	"github.com/KellyGutierrez/notifycar-sub000/internal/setting"
	"github.com/KellyGutierrez/notifycar-sub000/internal/template"
	"github.com/KellyGutierrez/notifycar-sub000/internal/vehicle"
)

// FallbackWrapper is used when neither the template's organization nor the
// system settings define a wrapper.
const FallbackWrapper = "{{icono}} *NOTIFYCAR - AVISO PARA {{tipo}} {{plate}}*\n" +
	"{{electrico}}\n" +
	"Hola {{name}}, alguien te dejó este mensaje sobre tu {{tipo}} de placa {{plate}}:\n\n" +
	"\"{{raw_message}}\"\n\n" +
	"Números de emergencia:\n" +
	"🚓 Policía: {{NUM_POLICIA}}\n" +
	"🚦 Tránsito: {{NUM_TRANSITO}}\n" +
	"🚑 Emergencias: {{NUM_EMERGENCIAS}}"

const electricBanner = "\n⚡ VEHÍCULO ELÉCTRICO ⚡\n"

// ComposeInput carries every value a wrapper placeholder can refer to.
type ComposeInput struct {
	VehicleType   vehicle.Type
	Plate         string
	IsElectric    bool
	RecipientName string
	RawMessage    string
	Emergency     emergency.Numbers
}

// Compose fills the placeholders of wrapper in a single pass. Text coming
// from the input is never scanned for placeholders again, and unknown
// placeholders are left as they are.
func Compose(wrapper string, in ComposeInput) string {
	label, icon := "VEHÍCULO", "🚗"
	if in.VehicleType == vehicle.TypeMotorcycle {
		label, icon = "MOTOCICLETA", "🏍️"
	}

	electric := ""
	if in.IsElectric {
		electric = electricBanner
	}

	name := firstNonBlank(in.RecipientName, DefaultRecipientName)
	police := firstNonBlank(in.Emergency.Police, "123")
	transit := firstNonBlank(in.Emergency.Transit, "123")
	emergencies := firstNonBlank(in.Emergency.Emergency, "123")

	r := strings.NewReplacer(
		"{{tipo}}", label,
		"{{plate}}", strings.ToUpper(in.Plate),
		"{{name}}", name,
		"{{raw_message}}", in.RawMessage,
		"{{mensaje}}", in.RawMessage,
		"{{icono}}", icon,
		"{{electrico}}", electric,
		"{{NUM_POLICIA}}", police,
		"{{policia}}", police,
		"{{NUM_TRANSITO}}", transit,
		"{{transito}}", transit,
		"{{NUM_EMERGENCIAS}}", emergencies,
		"{{emergencia}}", emergencies,
	)
	return r.Replace(wrapper)
}

// OrganizationFinder is the part of organization.Repository the composer needs.
type OrganizationFinder interface {
	FindByID(ctx context.Context, id string) (*organization.Organization, error)
}

// EmergencyLookup resolves emergency numbers for a country.
type EmergencyLookup interface {
	Lookup(ctx context.Context, country string) (emergency.Numbers, error)
}

// Composer picks the wrapper and the emergency numbers for a notification.
type Composer struct {
	orgs      OrganizationFinder
	emergency EmergencyLookup
}

func NewComposer(orgs OrganizationFinder, numbers EmergencyLookup) *Composer {
	return &Composer{orgs: orgs, emergency: numbers}
}

// ResolveWrapper returns, in order of precedence, the wrapper of the
// template's organization, the system-wide wrapper and FallbackWrapper.
// Blank wrappers do not count.
func (c *Composer) ResolveWrapper(ctx context.Context, tmpl *template.NotificationTemplate, s setting.Settings) (string, error) {
	if tmpl != nil && tmpl.OrganizationID != nil && *tmpl.OrganizationID != "" {
		org, err := c.orgs.FindByID(ctx, *tmpl.OrganizationID)
		switch {
		case err == nil:
			if w := org.Wrapper(); strings.TrimSpace(w) != "" {
				return w, nil
			}
		case errors.Is(err, organization.ErrNotFound):
		default:
			return "", fmt.Errorf("load organization %s: %w", *tmpl.OrganizationID, err)
		}
	}
	if strings.TrimSpace(s.MessageWrapper) != "" {
		return s.MessageWrapper, nil
	}
	return FallbackWrapper, nil
}

// EmergencyNumbers resolves the numbers for the account holder's country.
func (c *Composer) EmergencyNumbers(ctx context.Context, country string) (emergency.Numbers, error) {
	return c.emergency.Lookup(ctx, country)
}
