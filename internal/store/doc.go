// Package store persists RunReports and the credentials they carry.
//
// A report is written after every apply or destroy. The file store is what
// `apply --resume` and `report` read back. The S3 store keeps a copy per run
// plus a latest pointer per cluster. The console store prints a summary.
package store
