// Package fields models field definitions and normalizes them before they are
// submitted to the platform's schema API.
//
// A Normalizer takes a raw property map plus a snapshot of the fields already
// defined on the app and returns a corrected copy together with the warnings
// describing every repair. Repairs are limited to mistakes with one safe
// answer: missing or duplicate codes, option keys that differ from their
// labels, and missing unit positions. Everything else that would be rejected
// remotely is reported as a *diag.Error before any request is made.
//
// Each field is dispatched by Kind to its own variant normalizer, so the rules
// for calculated, link, lookup, reference-table, choice and subtable fields can
// be exercised independently. Subtable fields are normalized recursively with a
// code scope of their own.
package fields
