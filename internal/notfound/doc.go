// Package notfound decides whether a response is a "not found" page.
//
// Many sites answer unknown paths with 200 and a custom error page. For every
// directory and file extension the Classifier requests one random, certainly
// missing file and remembers the answer. A response is 404-like when its
// status is 404, or when the site does not send real 404s and the response
// body matches the remembered error page: equal SHA3-256 digests, or a token
// similarity of at least Threshold. Requested file names are removed from
// both bodies before comparing, since error pages often echo them.
package notfound
