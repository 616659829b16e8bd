// Package variant groups URLs that differ only in concrete parameter values
// and caps how many members of each group a scan explores.
//
// Canonicalize maps a URL to its shape: scheme, host and path are kept,
// the fragment is dropped and every query value becomes the literal "number"
// or "string". http://h/i.php?id=1 and http://h/i.php?id=2 share the shape
// http://h/i.php?id=number, so the crawler fetches at most MaxVariants of them.
package variant
