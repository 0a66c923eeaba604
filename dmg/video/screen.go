package video

// Screen geometry. The visible LCD is 160x144 pixels cut from a 256x256
// background; the published framebuffer holds one 2-bit shade per pixel,
// row-major with the origin at the top left.
const (
	FramebufferWidth  = 160
	FramebufferHeight = 144
	FramebufferSize   = FramebufferWidth * FramebufferHeight
)

// Shade values stored in the framebuffer: 0 is the lightest shade, 3 the
// darkest, after palette translation through BGP/OBP0/OBP1.
const (
	ShadeWhite     byte = 0
	ShadeLightGray byte = 1
	ShadeDarkGray  byte = 2
	ShadeBlack     byte = 3
)
