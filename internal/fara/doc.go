// Package fara knows the shape of the FARA e-filing portal: the pages the
// crawler walks, the form it posts, and how table rows become records.
//
// Everything here is pure parsing over goquery documents or raw page text;
// no function in this package performs I/O.
package fara
