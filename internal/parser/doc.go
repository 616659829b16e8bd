// Package parser extracts references from fetched documents.
//
// HTML documents are decoded to UTF-8 and walked with golang.org/x/net/html.
// URLs taken from structural elements (links, sources, form actions, object
// data, meta refresh targets) are parsed references. A regular-expression scan
// over the raw text then finds heuristic references: absolute http(s) URLs
// and quoted root-relative paths, for instance string literals in scripts.
// References already found structurally are not repeated as heuristic.
//
// Plain text, PDF and SWF bodies only get the regular-expression scan.
// Any other content type returns ErrNoParser.
package parser
