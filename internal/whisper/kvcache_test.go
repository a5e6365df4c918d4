package whisper

import "testing"

func TestSelfKVCache_WriteAndView(t *testing.T) {
	c, err := newSelfKVCache(2, 8, 4)
	if err != nil {
		t.Fatalf("newSelfKVCache: %v", err)
	}

	newK := []float32{1, 2, 3, 4}
	newV := []float32{5, 6, 7, 8}

	if err := c.write(0, 0, newK, newV); err != nil {
		t.Fatalf("write: %v", err)
	}
	c.n = 1

	k, v := c.view(0)
	if len(k) != 4 || len(v) != 4 {
		t.Fatalf("view lengths = %d,%d; want 4,4", len(k), len(v))
	}
	for i := range k {
		if k[i] != newK[i] || v[i] != newV[i] {
			t.Errorf("view[%d] = %v,%v; want %v,%v", i, k[i], v[i], newK[i], newV[i])
		}
	}
}

func TestSelfKVCache_WriteRejectsMalformedPayload(t *testing.T) {
	c, err := newSelfKVCache(1, 8, 4)
	if err != nil {
		t.Fatalf("newSelfKVCache: %v", err)
	}

	if err := c.write(0, 0, []float32{1, 2, 3}, []float32{1, 2, 3, 4}); err == nil {
		t.Error("expected error for k/v length mismatch")
	}

	if err := c.write(0, 0, []float32{1, 2, 3}, []float32{1, 2, 3}); err == nil {
		t.Error("expected error for payload not divisible by nState")
	}
}

func TestSelfKVCache_WriteRejectsOverflow(t *testing.T) {
	c, err := newSelfKVCache(1, 2, 4)
	if err != nil {
		t.Fatalf("newSelfKVCache: %v", err)
	}

	payload := make([]float32, 3*4)
	if err := c.write(0, 1, payload, payload); err == nil {
		t.Error("expected overflow error when nPast+nTokens exceeds nCtx")
	}
}

func TestSelfKVCache_Reset(t *testing.T) {
	c, err := newSelfKVCache(1, 8, 4)
	if err != nil {
		t.Fatalf("newSelfKVCache: %v", err)
	}

	c.n = 5
	c.Reset()
	if c.n != 0 {
		t.Errorf("n after Reset = %d; want 0", c.n)
	}
}

func TestSelfKVCache_CloneFrom(t *testing.T) {
	src, _ := newSelfKVCache(1, 4, 2)
	dst, _ := newSelfKVCache(1, 4, 2)

	_ = src.write(0, 0, []float32{1, 2}, []float32{3, 4})
	src.n = 1

	dst.cloneFrom(src)

	if dst.n != 1 {
		t.Errorf("dst.n = %d; want 1", dst.n)
	}

	dk, dv := dst.view(0)
	sk, sv := src.view(0)
	for i := range dk {
		if dk[i] != sk[i] || dv[i] != sv[i] {
			t.Errorf("cloneFrom did not copy data at %d", i)
		}
	}
}

func TestCrossKVCache_WriteLayerAndView(t *testing.T) {
	c, err := newCrossKVCache(2, 4, 2)
	if err != nil {
		t.Fatalf("newCrossKVCache: %v", err)
	}

	k := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	v := []float32{8, 7, 6, 5, 4, 3, 2, 1}

	if err := c.writeLayer(1, k, v); err != nil {
		t.Fatalf("writeLayer: %v", err)
	}

	gotK, gotV := c.view(1)
	for i := range gotK {
		if gotK[i] != k[i] || gotV[i] != v[i] {
			t.Errorf("view[%d] = %v,%v; want %v,%v", i, gotK[i], gotV[i], k[i], v[i])
		}
	}
}

func TestCrossKVCache_WriteLayerRejectsWrongSize(t *testing.T) {
	c, err := newCrossKVCache(1, 4, 2)
	if err != nil {
		t.Fatalf("newCrossKVCache: %v", err)
	}

	if err := c.writeLayer(0, []float32{1, 2}, []float32{1, 2, 3, 4, 5, 6, 7, 8}); err == nil {
		t.Error("expected error for wrong-sized k")
	}
}

func TestReshuffleSelfCaches_IdentityPermutationNoOp(t *testing.T) {
	caches := make([]*selfKVCache, 3)
	for i := range caches {
		c, _ := newSelfKVCache(1, 4, 2)
		_ = c.write(0, 0, []float32{float32(i), float32(i)}, []float32{float32(i), float32(i)})
		c.n = 1
		caches[i] = c
	}

	orig := make([]*selfKVCache, len(caches))
	copy(orig, caches)

	if err := reshuffleSelfCaches(caches, []int{0, 1, 2}); err != nil {
		t.Fatalf("reshuffleSelfCaches: %v", err)
	}

	for i := range caches {
		if caches[i] != orig[i] {
			t.Errorf("identity permutation should not move cache %d", i)
		}
	}
}

func TestReshuffleSelfCaches_SwapCycle(t *testing.T) {
	caches := make([]*selfKVCache, 2)
	for i := range caches {
		c, _ := newSelfKVCache(1, 4, 2)
		_ = c.write(0, 0, []float32{float32(i)}, []float32{float32(i)})
		caches[i] = c
	}

	orig0, orig1 := caches[0], caches[1]

	if err := reshuffleSelfCaches(caches, []int{1, 0}); err != nil {
		t.Fatalf("reshuffleSelfCaches: %v", err)
	}

	if caches[0] != orig1 || caches[1] != orig0 {
		t.Error("2-cycle swap did not exchange cache pointers")
	}
}

func TestReshuffleSelfCaches_DuplicateSourceFallsBackToClone(t *testing.T) {
	caches := make([]*selfKVCache, 3)
	for i := range caches {
		c, _ := newSelfKVCache(1, 4, 2)
		_ = c.write(0, 0, []float32{float32(i), float32(i)}, []float32{float32(i), float32(i)})
		c.n = 1
		caches[i] = c
	}

	// src index 0 used twice: a non-permutation, beam-search-style duplication.
	if err := reshuffleSelfCaches(caches, []int{0, 0, 2}); err != nil {
		t.Fatalf("reshuffleSelfCaches: %v", err)
	}

	k1, _ := caches[1].view(0)
	if len(k1) == 0 || k1[0] != 0 {
		t.Errorf("caches[1] should have been cloned from caches[0]'s original data, got %v", k1)
	}
}

func TestReshuffleSelfCaches_RejectsMismatchedLengths(t *testing.T) {
	caches := []*selfKVCache{{}, {}}
	if err := reshuffleSelfCaches(caches, []int{0}); err == nil {
		t.Error("expected error for length mismatch")
	}
}

func TestReshuffleSelfCaches_RejectsOutOfRangeIndex(t *testing.T) {
	caches := []*selfKVCache{{}, {}}
	if err := reshuffleSelfCaches(caches, []int{0, 5}); err == nil {
		t.Error("expected error for out-of-range source index")
	}
}
