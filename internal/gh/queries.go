package gh

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/machinebox/graphql"

	"github.com/h0rv/sumup/internal/domain"
)

// OwnerType represents whether an owner is an organization or user.
type OwnerType string

const (
	OwnerTypeOrganization OwnerType = "Organization"
	OwnerTypeUser         OwnerType = "User"
)

// ErrProjectNotFound indicates the owner has no project with the requested number.
var ErrProjectNotFound = errors.New("project not found")

// Item is a project item reduced to what a card needs.
type Item struct {
	ID       string // Project item node ID
	OptionID string // Selected option of the grouping field; empty when unset
	Title    string
	URL      string // Empty for drafts and private items
	Number   int
	Repo     string
}

// ResolveOwner determines if a login is an organization or user.
// Returns the owner type, owner ID, and error if the login doesn't exist.
func (c *Client) ResolveOwner(ctx context.Context, login string) (OwnerType, string, error) {
	req := graphql.NewRequest(`
		query($login: String!) {
			organization(login: $login) {
				id
			}
			user(login: $login) {
				id
			}
		}
	`)
	req.Var("login", login)

	var resp struct {
		Organization *struct {
			ID string `json:"id"`
		} `json:"organization"`
		User *struct {
			ID string `json:"id"`
		} `json:"user"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return "", "", fmt.Errorf("failed to resolve owner: %w", err)
	}

	if resp.Organization != nil {
		return OwnerTypeOrganization, resp.Organization.ID, nil
	}
	if resp.User != nil {
		return OwnerTypeUser, resp.User.ID, nil
	}

	return "", "", fmt.Errorf("login '%s' not found (neither organization nor user)", login)
}

// ListProjects lists the projects of an owner.
func (c *Client) ListProjects(ctx context.Context, ownerType OwnerType, ownerID string, login string) ([]domain.Project, error) {
	req := graphql.NewRequest(fmt.Sprintf(`
		query($id: ID!, $first: Int!) {
			node(id: $id) {
				... on %s {
					projectsV2(first: $first) {
						nodes {
							id
							number
							title
						}
					}
				}
			}
		}
	`, ownerType))
	req.Var("id", ownerID)
	req.Var("first", 100)

	var resp struct {
		Node struct {
			ProjectsV2 struct {
				Nodes []struct {
					ID     string `json:"id"`
					Number int    `json:"number"`
					Title  string `json:"title"`
				} `json:"nodes"`
			} `json:"projectsV2"`
		} `json:"node"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := make([]domain.Project, 0, len(resp.Node.ProjectsV2.Nodes))
	for _, node := range resp.Node.ProjectsV2.Nodes {
		projects = append(projects, domain.Project{
			ID:     node.ID,
			Number: node.Number,
			Title:  node.Title,
			Owner:  login,
		})
	}
	return projects, nil
}

// FindProject resolves an owner login and project number to a project.
func (c *Client) FindProject(ctx context.Context, login string, number int) (domain.Project, error) {
	ownerType, ownerID, err := c.ResolveOwner(ctx, login)
	if err != nil {
		return domain.Project{}, err
	}
	projects, err := c.ListProjects(ctx, ownerType, ownerID, login)
	if err != nil {
		return domain.Project{}, err
	}
	for _, p := range projects {
		if p.Number == number {
			return p, nil
		}
	}
	return domain.Project{}, fmt.Errorf("%w: %s #%d", ErrProjectNotFound, login, number)
}

// GetProjectFields fetches the fields of a project. Options of SINGLE_SELECT
// fields keep the order configured in the project.
func (c *Client) GetProjectFields(ctx context.Context, projectID string) ([]domain.ProjectField, error) {
	req := graphql.NewRequest(`
		query($projectId: ID!) {
			node(id: $projectId) {
				... on ProjectV2 {
					fields(first: 50) {
						nodes {
							... on ProjectV2Field {
								id
								name
								dataType
							}
							... on ProjectV2SingleSelectField {
								id
								name
								dataType
								options {
									id
									name
									color
								}
							}
							... on ProjectV2IterationField {
								id
								name
								dataType
							}
						}
					}
				}
			}
		}
	`)
	req.Var("projectId", projectID)

	var resp struct {
		Node struct {
			Fields struct {
				Nodes []struct {
					ID       string `json:"id"`
					Name     string `json:"name"`
					DataType string `json:"dataType"`
					Options  []struct {
						ID    string `json:"id"`
						Name  string `json:"name"`
						Color string `json:"color"`
					} `json:"options"`
				} `json:"nodes"`
			} `json:"fields"`
		} `json:"node"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get project fields: %w", err)
	}

	fields := make([]domain.ProjectField, 0, len(resp.Node.Fields.Nodes))
	for idx, node := range resp.Node.Fields.Nodes {
		field := domain.ProjectField{
			ID:    node.ID,
			Name:  node.Name,
			Type:  node.DataType,
			Order: idx,
		}
		if node.DataType == domain.FieldTypeSingleSelect {
			for optIdx, opt := range node.Options {
				field.Options = append(field.Options, domain.Option{
					ID:    opt.ID,
					Name:  opt.Name,
					Color: opt.Color,
					Order: optIdx,
				})
			}
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// GetItems fetches one page of project items with the option selected for
// groupFieldName. Returns the items, the next cursor and whether more pages exist.
func (c *Client) GetItems(ctx context.Context, projectID, groupFieldName, cursor string, limit int) ([]Item, string, bool, error) {
	req := graphql.NewRequest(`
		query($projectId: ID!, $first: Int!, $after: String, $fieldName: String!) {
			node(id: $projectId) {
				... on ProjectV2 {
					items(first: $first, after: $after) {
						pageInfo {
							hasNextPage
							endCursor
						}
						nodes {
							id
							fieldValueByName(name: $fieldName) {
								... on ProjectV2ItemFieldSingleSelectValue {
									optionId
								}
							}
							content {
								__typename
								... on Issue {
									title
									url
									number
									repository {
										nameWithOwner
									}
								}
								... on PullRequest {
									title
									url
									number
									repository {
										nameWithOwner
									}
								}
								... on DraftIssue {
									title
								}
							}
						}
					}
				}
			}
		}
	`)
	req.Var("projectId", projectID)
	req.Var("first", limit)
	req.Var("fieldName", groupFieldName)
	if cursor != "" {
		req.Var("after", cursor)
	} else {
		req.Var("after", nil)
	}

	var resp struct {
		Node struct {
			Items struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Nodes []struct {
					ID               string `json:"id"`
					FieldValueByName *struct {
						OptionID string `json:"optionId"`
					} `json:"fieldValueByName"`
					Content *struct {
						Typename   string `json:"__typename"`
						Title      string `json:"title"`
						URL        string `json:"url"`
						Number     int    `json:"number"`
						Repository *struct {
							NameWithOwner string `json:"nameWithOwner"`
						} `json:"repository"`
					} `json:"content"`
				} `json:"nodes"`
			} `json:"items"`
		} `json:"node"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, "", false, fmt.Errorf("failed to get items: %w", err)
	}

	items := make([]Item, 0, len(resp.Node.Items.Nodes))
	for _, node := range resp.Node.Items.Nodes {
		item := Item{ID: node.ID}
		if node.FieldValueByName != nil {
			item.OptionID = node.FieldValueByName.OptionID
		}

		switch {
		case node.Content == nil:
			// Private or deleted item
			item.Title = "(private item)"
		case node.Content.Typename == "Issue", node.Content.Typename == "PullRequest":
			item.Title = node.Content.Title
			item.URL = node.Content.URL
			item.Number = node.Content.Number
			if node.Content.Repository != nil {
				item.Repo = node.Content.Repository.NameWithOwner
			}
		case node.Content.Typename == "DraftIssue":
			item.Title = node.Content.Title
		default:
			item.Title = "(unknown item type)"
		}
		items = append(items, item)
	}

	page := resp.Node.Items.PageInfo
	return items, page.EndCursor, page.HasNextPage, nil
}

// GetAllItems follows GetItems pages until the project is exhausted.
func (c *Client) GetAllItems(ctx context.Context, projectID, groupFieldName string) ([]Item, error) {
	const pageSize = 100

	var all []Item
	cursor := ""
	for {
		items, next, more, err := c.GetItems(ctx, projectID, groupFieldName, cursor, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if !more || next == "" {
			return all, nil
		}
		cursor = next
	}
}

// SelectGroupField picks the single-select field whose options become lists.
// A non-empty name selects that field (case-insensitive). Otherwise a field
// called "Status" wins, then the only single-select field. When several
// candidates remain the choice is ambiguous and they are returned for the
// caller to pick from.
func SelectGroupField(fields []domain.ProjectField, name string) (selected *domain.ProjectField, candidates []domain.ProjectField, err error) {
	var singleSelect []domain.ProjectField
	for _, field := range fields {
		if field.Type == domain.FieldTypeSingleSelect {
			singleSelect = append(singleSelect, field)
		}
	}
	if len(singleSelect) == 0 {
		return nil, nil, errors.New("no SINGLE_SELECT fields found in project")
	}

	if name != "" {
		for i := range singleSelect {
			if strings.EqualFold(singleSelect[i].Name, name) {
				return &singleSelect[i], nil, nil
			}
		}
		return nil, singleSelect, fmt.Errorf("no SINGLE_SELECT field named %q", name)
	}

	for i := range singleSelect {
		if strings.EqualFold(singleSelect[i].Name, "Status") {
			return &singleSelect[i], nil, nil
		}
	}
	if len(singleSelect) == 1 {
		return &singleSelect[0], nil, nil
	}
	return nil, singleSelect, nil
}
