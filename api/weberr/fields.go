package weberr

import "errors"

type fielder interface {
	Fields() map[string]interface{}
}

// Fields collects the log fields attached anywhere in err's chain. Outer
// wrappers win over inner ones for the same key.
func Fields(err error) (fields map[string]interface{}, ok bool) {
	for err != nil {
		var fe fielder
		if !errors.As(err, &fe) {
			break
		}

		if fields == nil {
			fields = make(map[string]interface{})
		}
		for k, v := range fe.Fields() {
			if _, seen := fields[k]; !seen {
				fields[k] = v
			}
		}

		u, isWrapper := fe.(interface{ Unwrap() error })
		if !isWrapper {
			break
		}
		err = u.Unwrap()
	}
	return fields, fields != nil
}

type fieldsError struct {
	error
	fields map[string]interface{}
}

func (e *fieldsError) Fields() map[string]interface{} { return e.fields }

func (e *fieldsError) Unwrap() error { return e.error }
