package scripts

import (
	"GopherScene/internal/behaviour"
	"GopherScene/internal/logger"

	"go.uber.org/zap"
)

// ContactScript counts physics contacts of its object. The listener is
// tracked, so it goes away with the component.
type ContactScript struct {
	behaviour.BaseComponent
	Hits    int
	LogHits bool
}

func init() {
	behaviour.RegisterScript("ContactScript", func() behaviour.Component {
		return &ContactScript{}
	})
}

func (c *ContactScript) Start() {
	obj := c.GetGameObject()
	c.Track(obj.Contacts.AddListener(func(other *behaviour.GameObject) {
		c.Hits++
		if c.LogHits {
			logger.Log.Info("Contact",
				zap.String("object", obj.Name),
				zap.String("other", other.Name),
				zap.Int("hits", c.Hits))
		}
	}))
}

func (c *ContactScript) Attributes() []behaviour.Attribute {
	return []behaviour.Attribute{
		behaviour.IntAttr("hits", &c.Hits),
		behaviour.BoolAttr("log_hits", &c.LogHits),
	}
}
