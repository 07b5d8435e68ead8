// Package amount implements the signed 128-bit integer used for every
// monetary quantity in fluxora.
//
// Ordinary int64 arithmetic is not wide enough for rate × duration products
// at realistic token scales, so deposits, rates and withdrawn totals are
// carried as Amount. Two families of operations are provided:
//
//   - Checked*: report overflow to the caller. Used where an overflow must
//     surface as an error (stream creation).
//   - Saturating*: clamp to [Min, Max]. Used by accrual and withdrawal math,
//     which must never wrap.
package amount
