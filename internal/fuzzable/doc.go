// Package fuzzable turns a fetched response into fuzzable requests.
//
// Factory.Build emits the response URL itself (when asked), one request per
// HTML form and one per redirect header target. Forms are read with goquery;
// POST forms become post-data requests, every other method becomes a
// query-string request with the fields in the URL.
package fuzzable
