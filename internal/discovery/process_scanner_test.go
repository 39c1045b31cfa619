package discovery

import "testing"

func TestExtractProjectDirsFromArgs(t *testing.T) {
	t.Parallel()
	dirs := ExtractProjectDirs([][]string{
		{"kicad", "/home/user/project1/my_board.kicad_pro"},
		{"kicad", "/home/user/project2/another.kicad_pro"},
	})
	if len(dirs) != 2 {
		t.Fatalf("len(dirs) = %d, want 2", len(dirs))
	}
	if dirs[0] != "/home/user/project1" || dirs[1] != "/home/user/project2" {
		t.Errorf("dirs = %v, want sorted project1, project2", dirs)
	}
}

func TestExtractProjectDirsDeduplicates(t *testing.T) {
	t.Parallel()
	dirs := ExtractProjectDirs([][]string{
		{"kicad", "/project/board.kicad_pro"},
		{"kicad", "/project/board.kicad_pro"},
	})
	if len(dirs) != 1 {
		t.Fatalf("len(dirs) = %d, want 1", len(dirs))
	}
}

func TestExtractProjectDirsIgnoresNonProFiles(t *testing.T) {
	t.Parallel()
	dirs := ExtractProjectDirs([][]string{
		{"kicad", "/project/schematic.kicad_sch"},
	})
	if len(dirs) != 0 {
		t.Errorf("dirs = %v, want empty", dirs)
	}
}
