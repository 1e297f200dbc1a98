package knowledge

// Topic is one entry in the aggregated topic document. Weight counts the
// number of distinct segments that contributed the topic; SegmentIDs is the
// guard that keeps re-merging a segment from inflating it.
type Topic struct {
	Name       string   `json:"name"`
	Weight     int      `json:"weight"`
	SegmentIDs []string `json:"segments"`
}

// TopicIndex is the aggregated topic document.
type TopicIndex struct {
	PrimaryTopics   []Topic `json:"primary_topics"`
	SecondaryTopics []Topic `json:"secondary_topics"`
	Tags            []Topic `json:"tags"`
}

// NewTopicIndex returns an empty topic document.
func NewTopicIndex() *TopicIndex {
	return &TopicIndex{}
}

// mergeTopicList folds names into list keyed by topic name; a topic's
// weight grows only when segmentID is new to it.
func mergeTopicList(list []Topic, names []string, segmentID string) []Topic {
	for _, name := range names {
		if name == "" {
			continue
		}
		found := false
		for i := range list {
			if list[i].Name != name {
				continue
			}
			found = true
			if !containsString(list[i].SegmentIDs, segmentID) {
				list[i].SegmentIDs = addToSet(list[i].SegmentIDs, segmentID)
				list[i].Weight++
			}
			break
		}
		if !found {
			list = append(list, Topic{Name: name, Weight: 1, SegmentIDs: []string{segmentID}})
		}
	}
	return list
}
