package ddrescue

// Domain is an ordered, disjoint sequence of Blocks representing the bytes
// the user cares about rescuing.
type Domain struct {
	blocks []Block
}

// NewDomain builds a Domain covering [start, start+maxSize) (maxSize < 0
// means unbounded, i.e. "to the end"). If refMapfilePath is non-empty, the
// resulting domain is narrowed to the intersection with the Finished
// sblocks of the mapfile at that path.
func NewDomain(start, maxSize int64, refMapfilePath string) (Domain, error) {
	var whole Block
	if maxSize < 0 {
		whole = Block{Pos: start, Size: int64(1) << 62} // effectively unbounded
	} else {
		whole = Block{Pos: start, Size: maxSize}
	}

	if refMapfilePath == "" {
		if whole.IsEmpty() {
			return Domain{}, nil
		}
		return Domain{blocks: []Block{whole}}, nil
	}

	mb, err := LoadMapbook(refMapfilePath, true)
	if err != nil {
		return Domain{}, err
	}

	var blocks []Block
	for i := 0; i < mb.Sblocks(); i++ {
		sb := mb.Sblock(i)
		if sb.Status != Finished {
			continue
		}
		inter := sb.Block.Intersect(whole)
		if inter.IsEmpty() {
			continue
		}
		blocks = appendJoined(blocks, inter)
	}
	return Domain{blocks: blocks}, nil
}

// DomainFromBlocks builds a Domain directly from an already-disjoint,
// ascending slice of blocks (used by tests and by the status algebra,
// which computes domains without going through a mapfile load).
func DomainFromBlocks(blocks []Block) Domain {
	var out []Block
	for _, b := range blocks {
		if !b.IsEmpty() {
			out = appendJoined(out, b)
		}
	}
	return Domain{blocks: out}
}

func appendJoined(blocks []Block, b Block) []Block {
	if n := len(blocks); n > 0 {
		if joined, ok := blocks[n-1].Join(b); ok {
			blocks[n-1] = joined
			return blocks
		}
	}
	return append(blocks, b)
}

// Blocks returns the number of disjoint areas in the domain.
func (d Domain) Blocks() int { return len(d.blocks) }

// Size returns the total number of bytes in the domain (in_size in the
// original).
func (d Domain) Size() int64 {
	var total int64
	for _, b := range d.blocks {
		total += b.Size
	}
	return total
}

// Start returns the first byte of the domain, or 0 if empty.
func (d Domain) Start() int64 {
	if len(d.blocks) == 0 {
		return 0
	}
	return d.blocks[0].Pos
}

// End returns the byte past the last byte of the domain, or 0 if empty.
func (d Domain) End() int64 {
	if len(d.blocks) == 0 {
		return 0
	}
	return d.blocks[len(d.blocks)-1].End()
}

// Includes reports whether b lies entirely within some area of the domain.
func (d Domain) Includes(b Block) bool {
	for _, area := range d.blocks {
		if area.IncludesBlock(b) {
			return true
		}
	}
	return false
}

// Less reports whether the whole domain lies before b (mirrors
// ddrescuelog.cc's "logbook.domain() < sb" early-break test).
func (d Domain) Less(b Block) bool {
	if len(d.blocks) == 0 {
		return true
	}
	return d.End() <= b.Pos
}

// Area returns the i'th disjoint area of the domain.
func (d Domain) Area(i int) Block { return d.blocks[i] }

// Equal reports whether two domains cover exactly the same byte ranges.
func (d Domain) Equal(other Domain) bool {
	if len(d.blocks) != len(other.blocks) {
		return false
	}
	for i := range d.blocks {
		if d.blocks[i] != other.blocks[i] {
			return false
		}
	}
	return true
}
