package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driving"
)

type labelHandler struct {
	labels driving.LabelService
}

type addDomainRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type addLabelRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	DomainID    uuid.UUID `json:"domain_id"`
}

// taxonomyNode is the tree-shaped JSON view of the taxonomy.
type taxonomyNode struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Labels      []taxonomyNode `json:"labels,omitempty"`
}

func (h *labelHandler) handleAddDomain(c *fiber.Ctx) error {
	var req addDomainRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadRequest("invalid JSON request")
	}
	if req.Name == "" {
		return domain.NewValidationError(map[string]string{"name": "required"})
	}

	label, err := h.labels.AddDomain(c.Context(), req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(label)
}

func (h *labelHandler) handleAddLabel(c *fiber.Ctx) error {
	var req addLabelRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadRequest("invalid JSON request")
	}
	fields := make(map[string]string)
	if req.Name == "" {
		fields["name"] = "required"
	}
	if req.DomainID == uuid.Nil {
		fields["domain_id"] = "required"
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}

	label, err := h.labels.AddLabel(c.Context(), req.Name, req.Description, req.DomainID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(label)
}

func (h *labelHandler) handleDelete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errInvalidID()
	}
	force := c.QueryBool("force", false)

	if err := h.labels.Delete(c.Context(), id, force); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *labelHandler) handleTaxonomy(c *fiber.Ctx) error {
	taxonomy, err := h.labels.Taxonomy(c.Context())
	if err != nil {
		return err
	}

	domains := taxonomy.Domains()
	tree := make([]taxonomyNode, 0, len(domains))
	for _, d := range domains {
		node := taxonomyNode{ID: d.ID, Name: d.Name, Description: d.Description}
		for _, child := range taxonomy.Children(d.ID) {
			node.Labels = append(node.Labels, taxonomyNode{
				ID: child.ID, Name: child.Name, Description: child.Description,
			})
		}
		tree = append(tree, node)
	}
	return c.JSON(fiber.Map{"domains": tree})
}

func (h *labelHandler) handleCandidates(c *fiber.Ctx) error {
	candidates, err := h.labels.CandidateLabels(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"candidates": candidates, "count": len(candidates)})
}
