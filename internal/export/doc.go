// Package export reads and writes analysis results as CSV.
//
// # Analysis Files
//
// Each kymograph's velocity series is saved next to the image in a folder
// named after the image's folder:
//
//	/data/20221102/Capillary1_0001.tif
//	/data/20221102/20221102-analysis/Capillary1_0001.csv
//
// The file has one row per analysis window with the columns time,
// velocity, parentFolder, file, algorithm, delx, delt, numLines,
// pntsPerLine, cleanVelocity and absVelocity, followed by angle,
// windowSize, startPixel and stopPixel. Missing values are empty cells.
// Files written by older tools that lack the trailing columns still load.
//
// # Summary Tables
//
// WriteSummary stacks reports into one table with a leading dateIndex
// column counting files within a folder.
package export
