package fara

// Selectors and widget identifiers baked into the portal's APEX application.
const (
	listingLinkSelector   = "ul#L80330217189774968 li a"
	flowIDSelector        = "input[name=p_flow_id]"
	flowStepIDSelector    = "input[name=p_flow_step_id]"
	instanceSelector      = "input[name=p_instance]"
	rowCountSelector      = "span.display_only[id=P130_FP_NBR]"
	exhibitRowsSelector   = "div.a-IRR-tableContainer tr"
	exhibitLinkSelector   = "td.u-tL[headers=DOCLINK] a"
	exhibitDateSelector   = "td.u-tL[headers=DATE_STAMPED]"
	worksheetRegionID     = "80340213897823017"
	worksheetColumnID     = "80341508791823021"
	worksheetBreakColumn  = "COUNTRY_NAME"
	worksheetRowsSelector = `table[id="` + worksheetRegionID + `"] tr`
)

// Column header identifiers of the worksheet table.
const (
	ColumnLink       = "LINK"
	ColumnFPName     = "FP_NAME"
	ColumnFPRegDate  = "FP_REG_DATE"
	ColumnAddress    = "ADDRESS_1"
	ColumnState      = "STATE"
	ColumnCountry    = "COUNTRY_NAME"
	ColumnRegistrant = "REGISTRANT_NAME"
	ColumnRegNumber  = "REG_NUMBER"
	ColumnRegDate    = "REG_DATE"
)
