// Package formfill picks realistic values for blank form fields.
//
// The field name is case-folded and matched against an ordered table of name
// fragments; the first row that matches wins. Names that match nothing get a
// number when they look numeric and a generic word otherwise. The result only
// depends on the name.
package formfill
