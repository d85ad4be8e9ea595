package gh

import (
	"context"
	"fmt"

	"github.com/machinebox/graphql"
)

// UpdateItemField sets a project item's SINGLE_SELECT field to optionID.
func (c *Client) UpdateItemField(ctx context.Context, projectID, itemID, fieldID, optionID string) error {
	req := graphql.NewRequest(`
		mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $value: ProjectV2FieldValue!) {
			updateProjectV2ItemFieldValue(
				input: {
					projectId: $projectId
					itemId: $itemId
					fieldId: $fieldId
					value: $value
				}
			) {
				projectV2Item {
					id
				}
			}
		}
	`)

	req.Var("projectId", projectID)
	req.Var("itemId", itemID)
	req.Var("fieldId", fieldID)
	req.Var("value", map[string]interface{}{
		"singleSelectOptionId": optionID,
	})

	var resp struct {
		UpdateProjectV2ItemFieldValue struct {
			ProjectV2Item struct {
				ID string `json:"id"`
			} `json:"projectV2Item"`
		} `json:"updateProjectV2ItemFieldValue"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return fmt.Errorf("failed to update item field: %w", err)
	}
	return nil
}

// ClearItemField unsets a project item's field, moving it to "No Status".
func (c *Client) ClearItemField(ctx context.Context, projectID, itemID, fieldID string) error {
	req := graphql.NewRequest(`
		mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!) {
			clearProjectV2ItemFieldValue(
				input: {
					projectId: $projectId
					itemId: $itemId
					fieldId: $fieldId
				}
			) {
				projectV2Item {
					id
				}
			}
		}
	`)

	req.Var("projectId", projectID)
	req.Var("itemId", itemID)
	req.Var("fieldId", fieldID)

	var resp struct {
		ClearProjectV2ItemFieldValue struct {
			ProjectV2Item struct {
				ID string `json:"id"`
			} `json:"projectV2Item"`
		} `json:"clearProjectV2ItemFieldValue"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return fmt.Errorf("failed to clear item field: %w", err)
	}
	return nil
}
