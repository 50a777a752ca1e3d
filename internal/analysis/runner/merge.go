package runner

// Merge combines two schema-valid documents into one HYBRID document.
//
// Rules:
//   - list fields: union of both, deduplicated by each element's "ticker"
//     key; on conflict the primary element wins. Elements without a ticker
//     are kept from the primary side only, to avoid near-duplicate rows.
//   - scalar fields: primary wins; secondary fills in only when the
//     primary's value is missing, null, or an empty string.
//   - fields present only in the secondary are carried over.
func Merge(primary, secondary map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(primary)+len(secondary))

	for k, pv := range primary {
		sv, inSecondary := secondary[k]

		pList, pIsList := pv.([]interface{})
		sList, sIsList := sv.([]interface{})
		if pIsList && inSecondary && sIsList {
			out[k] = mergeLists(pList, sList)
			continue
		}

		if isEmpty(pv) && inSecondary && !isEmpty(sv) {
			out[k] = sv
			continue
		}
		out[k] = pv
	}

	for k, sv := range secondary {
		if _, seen := primary[k]; !seen {
			out[k] = sv
		}
	}

	return out
}

// mergeLists unions two lists, deduplicating object elements by their
// "ticker" key with primary precedence. Primary order is preserved; new
// secondary elements append in their own order.
func mergeLists(primary, secondary []interface{}) []interface{} {
	out := make([]interface{}, 0, len(primary)+len(secondary))
	seen := make(map[string]bool)

	for _, elem := range primary {
		out = append(out, elem)
		if key := elemTicker(elem); key != "" {
			seen[key] = true
		}
	}

	for _, elem := range secondary {
		key := elemTicker(elem)
		if key == "" {
			// Untagged secondary elements are dropped rather than risking
			// duplicated rows that differ only in wording
			continue
		}
		if !seen[key] {
			out = append(out, elem)
			seen[key] = true
		}
	}

	return out
}

func elemTicker(elem interface{}) string {
	obj, ok := elem.(map[string]interface{})
	if !ok {
		return ""
	}
	t, _ := obj["ticker"].(string)
	return t
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}
