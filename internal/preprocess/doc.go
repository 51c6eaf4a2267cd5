// Package preprocess prepares label photos for OCR.
//
// The stages run in a fixed order: grayscale conversion, skew correction,
// inverted Otsu binarization and text-block segmentation. Segmentation emits
// blocks in reading order (top-to-bottom, then left-to-right) and only keeps
// regions wider than MinBlockWidth and taller than MinBlockHeight. An empty
// block list is a valid result and means the photo carries no text.
package preprocess
