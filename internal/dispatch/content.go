package dispatch

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/example/hotel-call-scheduler/internal/hotel"
)

const wakeUpTemplate = "wake_up"

// Opening lines per language. Each set must define every call type plus
// wake_up; missing languages fall back to English.
var openingLines = map[string]string{
	"en": `
{{define "pre_arrival"}}Hello {{.FirstName}}, this is {{.HotelName}} calling ahead of your arrival tomorrow. Is there anything we can prepare for your stay?{{end}}
{{define "mid_stay"}}Hi {{.FirstName}}, this is {{.HotelName}}. We wanted to check that everything in room {{.RoomNumber}} is to your liking.{{end}}
{{define "pre_checkout"}}Good morning {{.FirstName}}, this is {{.HotelName}}. You are due to check out today; can we help with late checkout or transport?{{end}}
{{define "post_stay"}}Hello {{.FirstName}}, thank you for staying at {{.HotelName}}. Do you have a minute to tell us how your stay went?{{end}}
{{define "wake_up"}}Good morning {{.FirstName}}, this is your {{.Time}} wake-up call from {{.HotelName}}.{{end}}`,
	"es": `
{{define "pre_arrival"}}Hola {{.FirstName}}, le llamamos de {{.HotelName}} antes de su llegada de mañana. ¿Podemos preparar algo para su estancia?{{end}}
{{define "mid_stay"}}Hola {{.FirstName}}, le llamamos de {{.HotelName}}. Queremos confirmar que todo está a su gusto en la habitación {{.RoomNumber}}.{{end}}
{{define "pre_checkout"}}Buenos días {{.FirstName}}, le llamamos de {{.HotelName}}. Hoy es su día de salida; ¿necesita salida tardía o transporte?{{end}}
{{define "post_stay"}}Hola {{.FirstName}}, gracias por alojarse en {{.HotelName}}. ¿Tiene un minuto para contarnos qué tal su estancia?{{end}}
{{define "wake_up"}}Buenos días {{.FirstName}}, esta es su llamada de despertador de las {{.Time}} de {{.HotelName}}.{{end}}`,
	"fr": `
{{define "pre_arrival"}}Bonjour {{.FirstName}}, ici {{.HotelName}}, nous vous appelons avant votre arrivée demain. Pouvons-nous préparer quelque chose pour votre séjour ?{{end}}
{{define "mid_stay"}}Bonjour {{.FirstName}}, ici {{.HotelName}}. Nous voulions vérifier que tout vous convient dans la chambre {{.RoomNumber}}.{{end}}
{{define "pre_checkout"}}Bonjour {{.FirstName}}, ici {{.HotelName}}. Votre départ est prévu aujourd'hui ; souhaitez-vous un départ tardif ou un transport ?{{end}}
{{define "post_stay"}}Bonjour {{.FirstName}}, merci d'avoir séjourné au {{.HotelName}}. Avez-vous une minute pour nous parler de votre séjour ?{{end}}
{{define "wake_up"}}Bonjour {{.FirstName}}, voici votre réveil de {{.Time}} de la part du {{.HotelName}}.{{end}}`,
}

var templates = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(openingLines))
	for lang, src := range openingLines {
		out[lang] = template.Must(template.New(lang).Option("missingkey=error").Parse(src))
	}
	return out
}()

type content struct {
	FirstName  string
	HotelName  string
	RoomNumber string
	Time       string
}

func render(lang, name string, c content) (string, error) {
	t := templates[baseLanguage(lang)]
	if t == nil || t.Lookup(name) == nil {
		t = templates["en"]
	}
	var b strings.Builder
	if err := t.ExecuteTemplate(&b, name, c); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}

func renderCall(ct hotel.CallType, st hotel.Stay, hotelName string) (string, error) {
	return render(st.Guest.PreferredLanguage, string(ct), content{
		FirstName:  st.Guest.FirstName,
		HotelName:  hotelName,
		RoomNumber: st.Reservation.RoomNumber,
	})
}

// baseLanguage reduces "es-MX" or "ES_es" to "es".
func baseLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
