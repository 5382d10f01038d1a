// Package design computes biquad coefficients for the parametric filters
// used by the equalizer, room correction and air absorption stages.
//
// The designers follow the RBJ audio EQ cookbook. [Peak], [LowShelf] and
// [HighShelf] take raw parameters; [Band] applies the parameter clamping
// rules (frequency, gain and Q ranges) before designing, so that any
// user-supplied band yields a stable filter.
//
// [ISOThirdOctave] and [BandCenters] provide the default band layouts.
package design
