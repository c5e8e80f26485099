package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutePostAppliesEffectsAndSchedulesInfluence(t *testing.T) {
	es := newFakeEngineState()
	es.now = 600
	author := NewAgent(ProfessionBlogger)
	author.EnergyLevel = 5
	author.TimeBudget = 5
	author.SocialStatus = 2
	es.addAgent(author)

	x := NewActionExecutor()
	require.NoError(t, x.ExecutePost(es, PublishPostPayload{AuthorID: author.ID, Topic: TopicEconomic}))

	assert.NotNil(t, author.LastPostTs)
	assert.Equal(t, 600.0, *author.LastPostTs)
	assert.Len(t, es.trends, 1)
	assert.Len(t, es.scheduled, 1)
	assert.Equal(t, EventTrendInfluence, es.scheduled[0].Kind)
	assert.Equal(t, 605.0, es.scheduled[0].Timestamp)
	assert.NotEmpty(t, es.ledger.History)
	assert.Len(t, es.actions, 1)
}

func TestExecutePostIsNoOpWhenGateFails(t *testing.T) {
	es := newFakeEngineState()
	es.now = 100 // before work hours
	author := NewAgent(ProfessionBlogger)
	author.EnergyLevel = 5
	author.TimeBudget = 5
	es.addAgent(author)

	x := NewActionExecutor()
	require.NoError(t, x.ExecutePost(es, PublishPostPayload{AuthorID: author.ID, Topic: TopicEconomic}))

	assert.Nil(t, author.LastPostTs)
	assert.Empty(t, es.trends)
	assert.Empty(t, es.ledger.History)
	assert.Empty(t, es.actions)
}

func TestExecutePostIsNoOpWhenAuthorMissing(t *testing.T) {
	es := newFakeEngineState()
	x := NewActionExecutor()
	require.NoError(t, x.ExecutePost(es, PublishPostPayload{AuthorID: NewAgent(ProfessionBlogger).ID, Topic: TopicEconomic}))
	assert.Empty(t, es.trends)
}

func TestExecuteSelfDevAppliesEffects(t *testing.T) {
	es := newFakeEngineState()
	es.now = 600
	agent := NewAgent(ProfessionDeveloper)
	agent.TimeBudget = 5
	agent.EnergyLevel = 2
	es.addAgent(agent)

	x := NewActionExecutor()
	require.NoError(t, x.ExecuteSelfDev(es, SelfDevPayload{AgentID: agent.ID}))

	assert.NotNil(t, agent.LastSelfDevTs)
	assert.NotEmpty(t, es.ledger.History)
}

func TestExecuteSelfDevIsNoOpWhenGateFails(t *testing.T) {
	es := newFakeEngineState()
	agent := NewAgent(ProfessionDeveloper)
	agent.TimeBudget = 0
	es.addAgent(agent)

	x := NewActionExecutor()
	require.NoError(t, x.ExecuteSelfDev(es, SelfDevPayload{AgentID: agent.ID}))
	assert.Nil(t, agent.LastSelfDevTs)
}

func TestExecutePurchaseAppliesCostAndIncrementsCounter(t *testing.T) {
	es := newFakeEngineState()
	es.now = 600
	agent := NewAgent(ProfessionShopClerk)
	agent.FinancialCapability = 5
	es.addAgent(agent)

	x := NewActionExecutor()
	require.NoError(t, x.ExecutePurchase(es, PurchasePayload{AgentID: agent.ID, Level: PurchaseL1}))

	assert.Equal(t, 1, agent.PurchasesToday)
	assert.NotNil(t, agent.LastPurchaseTs[PurchaseL1])
	assert.NotEmpty(t, es.ledger.History)
}

func TestExecutePurchaseIsNoOpWhenBelowThreshold(t *testing.T) {
	es := newFakeEngineState()
	agent := NewAgent(ProfessionShopClerk)
	agent.FinancialCapability = 0
	es.addAgent(agent)

	x := NewActionExecutor()
	require.NoError(t, x.ExecutePurchase(es, PurchasePayload{AgentID: agent.ID, Level: PurchaseL3}))
	assert.Equal(t, 0, agent.PurchasesToday)
}

func TestMeanSocialStatusForTopicAveragesAffineProfessions(t *testing.T) {
	st := DefaultStaticTables()
	a := NewAgent(ProfessionBlogger)
	a.SocialStatus = 4
	b := NewAgent(ProfessionBlogger)
	b.SocialStatus = 2

	mean := meanSocialStatusForTopic([]*Agent{a, b}, st, TopicEconomic)
	if st.AffinityFor(ProfessionBlogger, TopicEconomic) > 0 {
		assert.Equal(t, 3.0, mean)
	} else {
		assert.Equal(t, 0.0, mean)
	}
}

func TestMeanSocialStatusForTopicReturnsZeroWhenNoneQualify(t *testing.T) {
	st := DefaultStaticTables()
	mean := meanSocialStatusForTopic(nil, st, TopicEconomic)
	assert.Equal(t, 0.0, mean)
}
