package grab

// Presenter shows reports to the user.
type Presenter interface {
	Info(title, message string)
	Warning(title, message string)
	Error(title, message string)
}

// Report hands the outcome to the presenter at its severity.
func Report(p Presenter, o *Outcome) {
	if p == nil || o == nil {
		return
	}
	switch o.Kind.Severity() {
	case SeverityInfo:
		p.Info(o.Title, o.Message)
	case SeverityWarning:
		p.Warning(o.Title, o.Message)
	default:
		p.Error(o.Title, o.Message)
	}
}
