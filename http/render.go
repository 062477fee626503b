package http

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"heartrisk/ml"
	"heartrisk/patient"
)

//go:embed templates/*.html
var templateFS embed.FS

// Result messages shown under the form.
const (
	HighRiskMessage = "Prediction: High risk of Heart Disease"
	LowRiskMessage  = "Prediction: Low risk of Heart Disease"
)

// Formatter renders numbers for one locale.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter parses a BCP 47 locale. Unparseable locales fall back to
// English.
func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag)}
}

// Percent formats a probability in [0,1] as a percentage with at most one
// fractional digit.
func (f *Formatter) Percent(v float64) string {
	return f.printer.Sprintf("%v", number.Percent(v, number.MaxFractionDigits(1)))
}

type fieldView struct {
	patient.Field
	Value string
}

type resultView struct {
	Class      string
	Message    string
	Confidence string
}

type pageData struct {
	Record     patient.Record
	Prediction *ml.Prediction
	Error      string
}

type pageView struct {
	Title  string
	Fields []fieldView
	Result *resultView
	Error  string
}

type pageRenderer struct {
	title     string
	formatter *Formatter
	tmpl      *template.Template
}

func newPageRenderer(title, locale string) (*pageRenderer, error) {
	if title == "" {
		title = "Heart Disease Risk Predictor"
	}
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &pageRenderer{
		title:     title,
		formatter: NewFormatter(locale),
		tmpl:      tmpl,
	}, nil
}

func (p *pageRenderer) view(data pageData) pageView {
	v := pageView{Title: p.title, Error: data.Error}
	for _, f := range patient.Fields() {
		v.Fields = append(v.Fields, fieldView{Field: f, Value: fieldValue(data.Record, f.Name)})
	}
	if pred := data.Prediction; pred != nil {
		result := &resultView{
			Class:      "success",
			Message:    LowRiskMessage,
			Confidence: p.formatter.Percent(pred.Confidence),
		}
		if pred.Label == ml.LabelHighRisk {
			result.Class = "error"
			result.Message = HighRiskMessage
		}
		v.Result = result
	}
	return v
}

// render executes into a buffer first so a template failure still yields
// a clean 500.
func (p *pageRenderer) render(w http.ResponseWriter, status int, data pageData, logger *zap.Logger) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, p.view(data)); err != nil {
		logger.Error("render page failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func fieldValue(r patient.Record, name string) string {
	if v, ok := r.Category(name); ok {
		return v
	}
	if v, ok := r.Numeric(name); ok {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
