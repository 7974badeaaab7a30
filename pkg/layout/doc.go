// Package layout models form layouts as a typed tree of ROW, GROUP and
// SUBTABLE nodes, validates their structure, and corrects them against the
// app's current fields before submission.
//
// Parse and Validate fail fast on the first structural violation in document
// order. Corrector.Correct returns a corrected copy together with warnings:
// widths are filled in for field elements, numeric sizes become strings,
// LABEL markup is sanitised, GROUP labels are dropped, and fields missing from
// the layout are reported (or appended when auto-insertion is enabled).
package layout
