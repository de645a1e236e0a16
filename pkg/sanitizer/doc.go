// Package sanitizer normalizes booking input before validation and storage.
//
// Normalization functions are idempotent and never fail: invalid input is
// returned in its best cleaned form and left for the validator to reject.
//
// Normalization includes:
//   - Phone numbers: Kenyan numbers in the 254XXXXXXXXX form M-Pesa expects
//   - Emails: trimmed and lower-cased
//   - Names and areas: whitespace collapsed and trimmed
//   - Free text: trimmed, inner line breaks preserved
package sanitizer
