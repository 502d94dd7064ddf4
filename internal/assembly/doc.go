// Package assembly turns normalized drafts and model extractions into
// platform-ready line items and a single quote order per workbook.
package assembly
