package ledger

import (
	"sort"
	"strings"

	"github.com/wakala/settlement/internal/domain"
)

// numberField binds an override field name to a nullable numeric column.
type numberField struct {
	name string
	ptr  **float64
}

// fieldSet is the overridable surface of one ledger row.
type fieldSet struct {
	numbers []numberField
	remarks *string
}

func (fs fieldSet) lookup(name string) (**float64, bool) {
	for _, f := range fs.numbers {
		if f.name == name {
			return f.ptr, true
		}
	}
	return nil, false
}

// mergeOverrides applies overrides to rows addressed by id. fieldsOf returns
// the overridable surface of a row. A missing row is a validation fault and
// its override is skipped; an unrecognized field is a warning.
func mergeOverrides(overrides []domain.ManualOverride, ids map[string]int, fieldsOf func(i int) fieldSet, report *domain.Report) {
	for _, o := range overrides {
		i, ok := ids[strings.TrimSpace(o.RowID)]
		if !ok {
			report.Add(domain.ValidationFault(o.RowID, "", "override references unknown row"))
			continue
		}
		fs := fieldsOf(i)

		names := make([]string, 0, len(o.Fields))
		for n := range o.Fields {
			names = append(names, n)
		}
		sort.Strings(names)

		for _, name := range names {
			v := o.Fields[name]
			if name == FieldRemarks {
				*fs.remarks = v.ApplyText(*fs.remarks)
				continue
			}
			ptr, ok := fs.lookup(name)
			if !ok {
				report.Add(domain.WarningFault(o.RowID, name, "unknown field ignored"))
				continue
			}
			next, err := v.ApplyFloat(*ptr)
			if err != nil {
				report.Add(domain.ValidationFault(o.RowID, name, err.Error()))
				continue
			}
			*ptr = next
		}
	}
}
