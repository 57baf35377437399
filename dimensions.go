package pixelpipe

// GetDimensions walks nodes forward from the source image size, folding
// each enabled node's ModifyROIOut in turn, and records the (BufIn, BufOut)
// pair on every piece for later use by overlay rendering (spec §4.6).
// Disabled nodes pass the ROI through unchanged.
func GetDimensions(nodes *NodeList, inputWidth, inputHeight int) (outWidth, outHeight int) {
	roi := FullImage(inputWidth, inputHeight)
	for _, node := range nodes.Nodes() {
		roiIn := roi
		roiOut := roi
		if node.Piece.Enabled {
			roiOut = node.Module.ModifyROIOut(node.Piece, roiIn)
		}
		node.Piece.BufIn, node.Piece.BufOut = roiIn, roiOut
		roi = roiOut
	}
	return roi.Width, roi.Height
}
