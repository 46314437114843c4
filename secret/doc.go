// Package secret resolves credentials referenced from configuration.
//
// A value is first expanded strictly against the environment: ${VAR} must be
// set, and $$ is a literal dollar. The result may then contain references of
// the form secretref:<provider>:<ref>, either as the whole value or inline:
//
//	secretref:file:/run/secrets/completion_token
//	Bearer secretref:env:COMPLETION_TOKEN
//
// DefaultResolver knows the "env" and "file" providers. Resolved values are
// never logged.
package secret
