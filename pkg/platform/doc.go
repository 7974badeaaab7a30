// Package platform defines the contract with the remote app-schema API: the
// Client interface, app ids, revisions and the RemoteError returned for
// platform-reported failures.
package platform
