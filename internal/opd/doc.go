// Package opd owns the optical path difference (OPD) map: a dense scalar
// field sampled on the exit-pupil grid where samples outside the pupil are NaN.
//
// NaN is the "undefined at this sample" marker. It is never an error and it is
// never coerced to zero. Unmasked statistics (Mean, Variance, Std, RMS) skip
// NaN samples; masked statistics narrow the active set to the mask but do not
// clean it, so a NaN inside the mask propagates to the result.
//
// No I/O happens in this package. Archive loading lives in internal/store.
package opd
