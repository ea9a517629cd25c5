package corner

// Traversal methods recorded in the bitstream.
const (
	TraversalDepthFirst          = 0
	TraversalMaxPredictionDegree = 1
)

// Sequence is the outcome of an attribute traversal: the order vertices
// were first reached, the corner at which each was reached and the
// inverse map. Both encoder and decoder run the same traversal over
// isomorphic corner tables so the k-th entries correspond.
type Sequence struct {
	Order        []VertexIndex
	DataToCorner []CornerIndex
	VertexToData []int32
}

func newSequence(numVertices int) *Sequence {
	s := &Sequence{
		Order:        make([]VertexIndex, 0, numVertices),
		DataToCorner: make([]CornerIndex, 0, numVertices),
		VertexToData: make([]int32, numVertices),
	}
	for i := range s.VertexToData {
		s.VertexToData[i] = -1
	}
	return s
}

func (s *Sequence) visit(v VertexIndex, c CornerIndex) {
	if v == InvalidVertex || int(v) >= len(s.VertexToData) {
		return
	}
	if s.VertexToData[v] >= 0 {
		return
	}
	s.VertexToData[v] = int32(len(s.Order))
	s.Order = append(s.Order, v)
	s.DataToCorner = append(s.DataToCorner, c)
}

// Traverse runs the requested traversal method over the table, seeding
// components from seeds in order.
func Traverse(method int, t *Table, seeds []CornerIndex) *Sequence {
	if method == TraversalMaxPredictionDegree {
		return traverseMaxPredictionDegree(t, seeds)
	}
	return traverseDepthFirst(t, seeds)
}

// traverseDepthFirst walks faces depth first, always branching right
// before left, visiting each vertex the first time its tip corner is
// processed.
func traverseDepthFirst(t *Table, seeds []CornerIndex) *Sequence {
	seq := newSequence(t.NumVertices())
	visitedFaces := make([]bool, t.NumFaces())

	for _, seed := range seeds {
		if seed == InvalidCorner {
			continue
		}
		startFace := t.Face(seed)
		if startFace == InvalidFace || visitedFaces[startFace] {
			continue
		}

		stack := []CornerIndex{seed}
		seq.visit(t.Vertex(t.Next(seed)), t.Next(seed))
		seq.visit(t.Vertex(t.Prev(seed)), t.Prev(seed))

		for len(stack) > 0 {
			cornerID := stack[len(stack)-1]
			faceID := t.Face(cornerID)
			if cornerID == InvalidCorner || faceID == InvalidFace || visitedFaces[faceID] {
				stack = stack[:len(stack)-1]
				continue
			}
			for {
				visitedFaces[faceID] = true
				vertID := t.Vertex(cornerID)
				if vertID == InvalidVertex {
					break
				}
				if seq.VertexToData[vertID] < 0 {
					onBoundary := t.IsOnBoundary(vertID)
					seq.visit(vertID, cornerID)
					if !onBoundary {
						cornerID = t.RightCorner(cornerID)
						if cornerID == InvalidCorner {
							break
						}
						faceID = t.Face(cornerID)
						if faceID == InvalidFace {
							break
						}
						continue
					}
				}

				rightCorner := t.RightCorner(cornerID)
				leftCorner := t.LeftCorner(cornerID)
				rightFace := t.Face(rightCorner)
				leftFace := t.Face(leftCorner)
				rightVisited := rightFace == InvalidFace || visitedFaces[rightFace]
				leftVisited := leftFace == InvalidFace || visitedFaces[leftFace]

				if rightVisited {
					if leftVisited {
						stack = stack[:len(stack)-1]
						break
					}
					cornerID = leftCorner
					faceID = leftFace
				} else if leftVisited {
					cornerID = rightCorner
					faceID = rightFace
				} else {
					stack[len(stack)-1] = leftCorner
					stack = append(stack, rightCorner)
					break
				}
			}
		}
	}
	return seq
}

// traverseMaxPredictionDegree prefers corners whose tip vertex already
// has several reachable predictors, improving parallelogram accuracy.
// Priorities: 0 = tip already visited, 1 = prediction degree above one,
// 2 = everything else.
func traverseMaxPredictionDegree(t *Table, seeds []CornerIndex) *Sequence {
	seq := newSequence(t.NumVertices())
	visitedFaces := make([]bool, t.NumFaces())
	predictionDegree := make([]int32, t.NumVertices())

	var stacks [3][]CornerIndex
	bestPriority := 0

	computePriority := func(c CornerIndex) int {
		if c == InvalidCorner {
			return 2
		}
		v := t.Vertex(c)
		if v == InvalidVertex {
			return 2
		}
		if seq.VertexToData[v] >= 0 {
			return 0
		}
		predictionDegree[v]++
		if predictionDegree[v] > 1 {
			return 1
		}
		return 2
	}
	push := func(c CornerIndex, priority int) {
		stacks[priority] = append(stacks[priority], c)
		if priority < bestPriority {
			bestPriority = priority
		}
	}
	pop := func() CornerIndex {
		for p := bestPriority; p < 3; p++ {
			if n := len(stacks[p]); n > 0 {
				c := stacks[p][n-1]
				stacks[p] = stacks[p][:n-1]
				bestPriority = p
				return c
			}
		}
		return InvalidCorner
	}

	for _, seed := range seeds {
		if seed == InvalidCorner {
			continue
		}
		startFace := t.Face(seed)
		if startFace == InvalidFace || visitedFaces[startFace] {
			continue
		}

		stacks[0] = stacks[0][:0]
		stacks[1] = stacks[1][:0]
		stacks[2] = stacks[2][:0]
		stacks[0] = append(stacks[0], seed)
		bestPriority = 0

		seq.visit(t.Vertex(t.Next(seed)), t.Next(seed))
		seq.visit(t.Vertex(t.Prev(seed)), t.Prev(seed))
		seq.visit(t.Vertex(seed), seed)

		for {
			cornerID := pop()
			if cornerID == InvalidCorner {
				break
			}
			face0 := t.Face(cornerID)
			if face0 == InvalidFace || visitedFaces[face0] {
				continue
			}
			for {
				faceID := t.Face(cornerID)
				if faceID == InvalidFace || visitedFaces[faceID] {
					break
				}
				visitedFaces[faceID] = true
				seq.visit(t.Vertex(cornerID), cornerID)

				rightCorner := t.RightCorner(cornerID)
				leftCorner := t.LeftCorner(cornerID)
				rightFace := t.Face(rightCorner)
				leftFace := t.Face(leftCorner)
				rightVisited := rightFace == InvalidFace || visitedFaces[rightFace]
				leftVisited := leftFace == InvalidFace || visitedFaces[leftFace]

				advanced := false
				if !leftVisited {
					priority := computePriority(leftCorner)
					if rightVisited && priority <= bestPriority {
						cornerID = leftCorner
						advanced = true
					} else {
						push(leftCorner, priority)
					}
				}
				if !advanced && !rightVisited {
					priority := computePriority(rightCorner)
					if priority <= bestPriority {
						cornerID = rightCorner
						advanced = true
					} else {
						push(rightCorner, priority)
					}
				}
				if !advanced {
					break
				}
			}
		}
	}
	return seq
}
