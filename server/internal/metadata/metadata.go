package metadata

// Entry is a flat playlist item as returned by yt-dlp --flat-playlist.
type Entry struct {
	Id    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Playlist is the metadata of the submitted URL. When the URL resolves
// to a single item Type is not "playlist" and Entries is empty.
type Playlist struct {
	Type          string  `json:"_type"`
	Id            string  `json:"id"`
	Title         string  `json:"title"`
	PlaylistTitle string  `json:"playlist_title"`
	Entries       []Entry `json:"entries"`
}

func (p *Playlist) IsPlaylist() bool { return p.Type == "playlist" }

// Count is the number of items that will be downloaded.
func (p *Playlist) Count() int {
	if p.IsPlaylist() {
		return len(p.Entries)
	}
	return 1
}

func (p *Playlist) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	if p.PlaylistTitle != "" {
		return p.PlaylistTitle
	}
	return "playlist"
}
