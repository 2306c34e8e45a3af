package audit

// masker redacts configured argument field names before a record ever
// reaches the queue, so sensitive values never land in a flush batch,
// a subscriber feed, or a crash dump.
type masker struct {
	fields map[string]struct{}
}

func newMasker(fields []string) *masker {
	m := &masker{fields: make(map[string]struct{}, len(fields))}
	for _, f := range fields {
		m.fields[f] = struct{}{}
	}
	return m
}

func (m *masker) mask(r Record) Record {
	if len(m.fields) == 0 || r.Arguments == nil {
		return r
	}
	masked := make(map[string]interface{}, len(r.Arguments))
	for k, v := range r.Arguments {
		if _, redact := m.fields[k]; redact {
			masked[k] = "***"
			continue
		}
		masked[k] = v
	}
	r.Arguments = masked
	return r
}
