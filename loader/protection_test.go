// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package loader

import "testing"

func TestSectionProtectionTable(t *testing.T) {
	cases := []struct {
		exec, read, write bool
		want               uint32
	}{
		{false, false, false, pageNoAccess},
		{false, false, true, pageWriteCopy},
		{false, true, false, pageReadOnly},
		{false, true, true, pageReadWrite},
		{true, false, false, pageExecute},
		{true, false, true, pageExecuteWriteCopy},
		{true, true, false, pageExecuteRead},
		{true, true, true, pageExecuteReadWrite},
	}
	for _, c := range cases {
		got := sectionProtection(c.exec, c.read, c.write, false)
		if got != c.want {
			t.Errorf("sectionProtection(%v,%v,%v) = %#x, want %#x", c.exec, c.read, c.write, got, c.want)
		}
	}
}

func TestSectionProtectionNotCached(t *testing.T) {
	got := sectionProtection(false, true, false, true)
	want := pageReadOnly | pageNoCache
	if got != want {
		t.Errorf("sectionProtection with notCached = %#x, want %#x", got, want)
	}
}
