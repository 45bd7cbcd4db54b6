// Package align stacks ragged per-run field sequences into rectangular
// matrices.
//
// Every field is aligned on its own: runs without a sample of the field are
// left out of that field's matrix only, so matrices of one experiment may
// have different row counts. Short rows are right-padded with NaN and the
// true length of every row is kept in Matrix.Lengths, which is what
// Missing consults. A measured NaN and a pad cell are therefore told apart
// by length, never by value.
package align
