// Package sentinel defines a string-backed error type so that package-level
// error values can be declared as constants and still match with errors.Is.
package sentinel
