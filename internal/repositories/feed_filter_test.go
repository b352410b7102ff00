package repositories

import (
	"testing"

	"github.com/bcetconnect/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// matchesFilter evaluates a visibility filter against a document the way the
// server would, covering the fields and operators visibilityFilter emits
// ($or, $and, $in, equality).
func matchesFilter(item models.FeedItem, filter bson.M) bool {
	for key, cond := range filter {
		switch key {
		case "$or":
			matched := false
			for _, clause := range cond.([]bson.M) {
				if matchesFilter(item, clause) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		case "$and":
			for _, clause := range cond.([]bson.M) {
				if !matchesFilter(item, clause) {
					return false
				}
			}
		default:
			if !matchesField(item, key, cond) {
				return false
			}
		}
	}
	return true
}

func matchesField(item models.FeedItem, field string, cond interface{}) bool {
	var value interface{}
	switch field {
	case "author_id":
		value = item.AuthorID
	case "type":
		value = item.Type
	case "visibility":
		value = item.Visibility
	case "community_id":
		value = item.CommunityID
	case "is_deleted":
		value = item.IsDeleted
	default:
		return false
	}

	if op, ok := cond.(bson.M); ok {
		set, ok := op["$in"].([]uint)
		if !ok {
			return false
		}
		id, ok := value.(uint)
		if !ok {
			return false
		}
		for _, candidate := range set {
			if candidate == id {
				return true
			}
		}
		return false
	}
	return value == cond
}

func visible(q FeedQuery, item models.FeedItem) bool {
	return matchesFilter(item, visibilityFilter(q))
}

func TestOwnItemsAlwaysVisible(t *testing.T) {
	q := FeedQuery{ViewerID: 1}

	for _, vis := range []string{models.VisibilityFollowers, models.VisibilityCommunity, models.VisibilityPublic} {
		item := models.FeedItem{AuthorID: 1, Type: models.FeedTypeUser, Visibility: vis}
		if !visible(q, item) {
			t.Errorf("viewer's own %s item not visible", vis)
		}
	}
}

func TestAdminAnnouncementsVisibleToEveryone(t *testing.T) {
	item := models.FeedItem{AuthorID: 99, Type: models.FeedTypeAdmin, Visibility: models.VisibilityFollowers}

	// a viewer with no follows and no communities still sees it
	if !visible(FeedQuery{ViewerID: 1}, item) {
		t.Errorf("admin announcement hidden from unconnected viewer")
	}
}

func TestFollowersScopeRequiresFollow(t *testing.T) {
	item := models.FeedItem{AuthorID: 2, Type: models.FeedTypeUser, Visibility: models.VisibilityFollowers}

	follower := FeedQuery{ViewerID: 1, FollowingIDs: []uint{2, 5}}
	stranger := FeedQuery{ViewerID: 1, FollowingIDs: []uint{5}}

	if !visible(follower, item) {
		t.Errorf("follower cannot see followed author's item")
	}
	if visible(stranger, item) {
		t.Errorf("non-follower can see FOLLOWERS-scoped item")
	}
}

func TestCommunityScopeRequiresMembership(t *testing.T) {
	item := models.FeedItem{AuthorID: 2, Type: models.FeedTypeCommunity, Visibility: models.VisibilityCommunity, CommunityID: 10}

	member := FeedQuery{ViewerID: 1, CommunityIDs: []uint{10}}
	outsider := FeedQuery{ViewerID: 1, CommunityIDs: []uint{11}}

	if !visible(member, item) {
		t.Errorf("community member cannot see community item")
	}
	if visible(outsider, item) {
		t.Errorf("non-member can see COMMUNITY-scoped item")
	}
}

func TestPublicVisibleToAll(t *testing.T) {
	item := models.FeedItem{AuthorID: 2, Type: models.FeedTypeUser, Visibility: models.VisibilityPublic}

	if !visible(FeedQuery{ViewerID: 1}, item) {
		t.Errorf("public item hidden from unconnected viewer")
	}
}

func TestDeletedItemsNeverVisible(t *testing.T) {
	item := models.FeedItem{AuthorID: 1, Type: models.FeedTypeUser, Visibility: models.VisibilityPublic, IsDeleted: true}

	// not even to the author
	if visible(FeedQuery{ViewerID: 1}, item) {
		t.Errorf("soft-deleted item still visible")
	}
}

func TestTypeFilterKeepsOwnItems(t *testing.T) {
	ownPost := models.FeedItem{AuthorID: 1, Type: models.FeedTypeUser, Visibility: models.VisibilityPublic}
	otherPost := models.FeedItem{AuthorID: 2, Type: models.FeedTypeUser, Visibility: models.VisibilityPublic}
	jobCard := models.FeedItem{AuthorID: 3, Type: models.FeedTypeJobCard, Visibility: models.VisibilityPublic}

	q := FeedQuery{ViewerID: 1, Type: models.FeedTypeJobCard}

	if !visible(q, jobCard) {
		t.Errorf("requested type filtered out")
	}
	if visible(q, otherPost) {
		t.Errorf("non-matching type passed the filter")
	}
	// the viewer's own content rides through any type filter
	if !visible(q, ownPost) {
		t.Errorf("type filter hid the viewer's own item")
	}
}

func TestTypeAllDisablesFilter(t *testing.T) {
	jobCard := models.FeedItem{AuthorID: 3, Type: models.FeedTypeJobCard, Visibility: models.VisibilityPublic}
	userPost := models.FeedItem{AuthorID: 2, Type: models.FeedTypeUser, Visibility: models.VisibilityPublic}

	q := FeedQuery{ViewerID: 1, Type: "ALL"}

	if !visible(q, jobCard) || !visible(q, userPost) {
		t.Errorf("type ALL should not constrain the feed")
	}

	filter := visibilityFilter(q)
	if _, present := filter["$and"]; present {
		t.Errorf("type ALL must not add a type clause")
	}
}

func TestNilMembershipSlicesAreSafe(t *testing.T) {
	q := FeedQuery{ViewerID: 1} // no following, no communities

	followersItem := models.FeedItem{AuthorID: 2, Type: models.FeedTypeUser, Visibility: models.VisibilityFollowers}
	communityItem := models.FeedItem{AuthorID: 2, Type: models.FeedTypeCommunity, Visibility: models.VisibilityCommunity, CommunityID: 10}

	if visible(q, followersItem) || visible(q, communityItem) {
		t.Errorf("unconnected viewer saw scoped content")
	}
}

func TestVisibilityScenario(t *testing.T) {
	// viewer 1 follows 2, belongs to community 10
	q := FeedQuery{ViewerID: 1, FollowingIDs: []uint{2}, CommunityIDs: []uint{10}}

	cases := []struct {
		name string
		item models.FeedItem
		want bool
	}{
		{"own followers post", models.FeedItem{AuthorID: 1, Type: models.FeedTypeUser, Visibility: models.VisibilityFollowers}, true},
		{"followed author", models.FeedItem{AuthorID: 2, Type: models.FeedTypeUser, Visibility: models.VisibilityFollowers}, true},
		{"unfollowed author", models.FeedItem{AuthorID: 3, Type: models.FeedTypeUser, Visibility: models.VisibilityFollowers}, false},
		{"own community", models.FeedItem{AuthorID: 3, Type: models.FeedTypeCommunity, Visibility: models.VisibilityCommunity, CommunityID: 10}, true},
		{"foreign community", models.FeedItem{AuthorID: 3, Type: models.FeedTypeCommunity, Visibility: models.VisibilityCommunity, CommunityID: 20}, false},
		{"public stranger", models.FeedItem{AuthorID: 3, Type: models.FeedTypeUser, Visibility: models.VisibilityPublic}, true},
		{"admin broadcast", models.FeedItem{AuthorID: 3, Type: models.FeedTypeAdmin, Visibility: models.VisibilityFollowers}, true},
		{"deleted public", models.FeedItem{AuthorID: 3, Type: models.FeedTypeUser, Visibility: models.VisibilityPublic, IsDeleted: true}, false},
	}
	for _, tc := range cases {
		if got := visible(q, tc.item); got != tc.want {
			t.Errorf("%s: visible = %v, want %v", tc.name, got, tc.want)
		}
	}
}
