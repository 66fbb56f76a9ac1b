package quantize

import "picquant/pixel"

const octreeDepth = 8

// OctreeQuantizer inserts every color into a depth-8 octree over the RGB bit
// planes and uses the first n leaves met in pre-order as the palette.
//
// The palette can hold fewer than n colors when the image has fewer distinct
// colors.
type OctreeQuantizer struct{}

type octreeNode struct {
	sum      [3]int
	count    int
	children [8]*octreeNode
}

// childIndex takes bit (7 - level) of each channel, r contributing 1, g 2
// and b 4.
func childIndex(c pixel.RGBA, level int) int {
	shift := octreeDepth - 1 - level
	return int(c.R>>shift&1) | int(c.G>>shift&1)<<1 | int(c.B>>shift&1)<<2
}

func (n *octreeNode) add(c pixel.RGBA) {
	node := n
	for level := range octreeDepth {
		i := childIndex(c, level)
		if node.children[i] == nil {
			node.children[i] = &octreeNode{}
		}
		node = node.children[i]
	}
	node.sum[0] += int(c.R)
	node.sum[1] += int(c.G)
	node.sum[2] += int(c.B)
	node.count++
}

// colors appends averaged node colors in pre-order until palette holds limit
// entries.
func (n *octreeNode) colors(palette []pixel.RGBA, limit int) []pixel.RGBA {
	if n == nil || len(palette) >= limit {
		return palette
	}
	if n.count > 0 {
		palette = append(palette, pixel.RGBA{
			R: uint8(n.sum[0] / n.count),
			G: uint8(n.sum[1] / n.count),
			B: uint8(n.sum[2] / n.count),
			A: 255,
		})
	}
	for _, child := range n.children {
		palette = child.colors(palette, limit)
	}
	return palette
}

func (OctreeQuantizer) Quantize(buf *pixel.Buffer, n int) (Report, error) {
	if err := checkArgs(buf, n); err != nil {
		return Report{}, err
	}

	root := &octreeNode{}
	for i := range buf.Len() {
		root.add(buf.PixelAt(i))
	}
	palette := root.colors(make([]pixel.RGBA, 0, n), n)

	histogram := make([]int, len(palette))
	for i := range buf.Len() {
		idx := nearest(buf.PixelAt(i), palette, squaredRGB)
		buf.SetPixelAt(i, palette[idx])
		histogram[idx]++
	}

	return Report{
		Palette:   palette,
		Histogram: histogram,
	}, nil
}
