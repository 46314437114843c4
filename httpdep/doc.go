// Package httpdep talks to dependencies over HTTP.
//
// A Client implements both collaborator contracts depguard consumes: Init
// for the lifecycle manager and Annotate for a fallback tier. Init issues
// GET {endpoint}{init_path} and treats any 2xx as ready. Annotate POSTs the
// request as JSON to {endpoint}{annotate_path} and reads the annotation list
// found at result_path in the response, using gjson path syntax.
//
// Each annotation in the response must look like
//
//	{"span": {"start": 0, "end": 4, "line": 1}, "payload": {...}}
//
// Every request carries an X-Request-ID header.
package httpdep
