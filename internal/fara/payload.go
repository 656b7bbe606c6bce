package fara

import "strconv"

// BuildWorksheetPayload builds the form that asks the interactive report to
// return every row in a single control break instead of one UI page.
func BuildWorksheetPayload(tokens WorksheetTokens, ajaxIdentifier string, rowCount int) map[string]string {
	return map[string]string{
		"p_flow_id":           tokens.FlowID,
		"p_flow_step_id":      tokens.FlowStepID,
		"p_instance":          tokens.Instance,
		"p_request":           "PLUGIN=" + ajaxIdentifier,
		"p_widget_name":       "worksheet",
		"p_widget_mod":        "ACTION",
		"p_widget_action":     "BREAK",
		"p_widget_num_return": strconv.Itoa(rowCount),
		"x01":                 worksheetRegionID,
		"x02":                 worksheetColumnID,
		"x03":                 worksheetBreakColumn,
	}
}
