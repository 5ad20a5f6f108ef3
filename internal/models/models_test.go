package models

import "testing"

func TestTriggerDefValidate(t *testing.T) {
	tc := []struct {
		name    string
		def     TriggerDef
		wantErr bool
	}{
		{name: "valid", def: TriggerDef{Name: "song_added", Table: "songs", When: ChangeInsert, IDText: "NEW.id"}},
		{name: "missing name", def: TriggerDef{Table: "songs", When: ChangeInsert, IDText: "NEW.id"}, wantErr: true},
		{name: "missing table", def: TriggerDef{Name: "x", When: ChangeInsert, IDText: "NEW.id"}, wantErr: true},
		{name: "missing id", def: TriggerDef{Name: "x", Table: "songs", When: ChangeInsert}, wantErr: true},
		{name: "bad kind", def: TriggerDef{Name: "x", Table: "songs", When: "upsert", IDText: "NEW.id"}, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandlerResultValidate(t *testing.T) {
	tc := []struct {
		name    string
		result  *HandlerResult
		wantErr bool
	}{
		{name: "create", result: Created(ItemSong, "gm-1")},
		{name: "delete without id", result: Deleted(ItemPlaylist, "")},
		{name: "create without id", result: Created(ItemSong, ""), wantErr: true},
		{name: "unknown action", result: &HandlerResult{Action: "update", ItemType: ItemSong, RemoteID: "x"}, wantErr: true},
		{name: "unknown item", result: &HandlerResult{Action: ActionCreate, ItemType: "album", RemoteID: "x"}, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseItemType(t *testing.T) {
	if got, err := ParseItemType(" Song "); err != nil || got != ItemSong {
		t.Errorf("ParseItemType() = %v, %v", got, err)
	}
	if _, err := ParseItemType("album"); err == nil {
		t.Error("expected error for unknown item type")
	}
}

func TestChangeKindSQL(t *testing.T) {
	if got := ChangeDelete.SQL(); got != "DELETE" {
		t.Errorf("SQL() = %q, want DELETE", got)
	}
}
